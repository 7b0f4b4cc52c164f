package barrier

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"barrier-gateway/middleware/barrier/application"
	"barrier-gateway/middleware/barrier/domain"

	log "github.com/sirupsen/logrus"
)

const (
	HeaderCode = "X-Barrier-Code"
	HeaderKey  = "X-Barrier-Key"

	// CodeInFlight vai em X-Barrier-Code quando já há uma tentativa em
	// andamento para a mesma chave.
	CodeInFlight = "IN_FLIGHT"
)

type KeyFunc func(r *http.Request) string

type Options struct {
	Barriers           application.Source
	Stats              domain.StatsStore
	Clock              domain.Clock
	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	RejectStatus       int
	// FailStatus: respostas com status >= FailStatus contam como falha.
	FailStatus       int
	RetryAfter       time.Duration
	AddBarrierHeader bool
	// AllowConcurrent desliga o limite de uma tentativa em andamento por
	// chave. Sem ele, requisições simultâneas da mesma chave passam todas
	// pelo Check antes de qualquer Success.
	AllowConcurrent bool
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// StaticKey faz todas as requisições compartilharem a mesma barreira
// (ex: proteger um upstream com limite global).
func StaticKey(key string) KeyFunc {
	return func(*http.Request) string { return key }
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.FailStatus == 0 {
		opts.FailStatus = http.StatusInternalServerError
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	svc := application.Service{
		Source:     opts.Barriers,
		Stats:      opts.Stats,
		Clock:      opts.Clock,
		RetryAfter: opts.RetryAfter,
	}

	var inflight application.InFlight

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)
			if opts.AddBarrierHeader {
				w.Header().Set(HeaderKey, key)
			}

			if !opts.AllowConcurrent {
				done, ok := inflight.TryStart(key)
				if !ok {
					log.WithField("key", key).Debug("request rejected: attempt already in flight")
					reject(w, opts.RejectStatus, CodeInFlight, opts.RetryAfter)
					return
				}
				defer done()
			}

			dec := svc.Decide(r.Context(), key)
			if !dec.Allowed {
				reject(w, opts.RejectStatus, dec.Code.String(), dec.RetryAfter)
				return
			}

			a := &attempt{}
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), attemptKey{}, a)))

			if a.skipped.Load() {
				log.WithField("key", key).Debug("outcome not reported: request was not forwarded")
				return
			}
			svc.Report(r.Context(), key, rec.status < opts.FailStatus)
		})
	}
}

func reject(w http.ResponseWriter, status int, code string, retryAfter time.Duration) {
	w.Header().Set(HeaderCode, code)
	w.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
	http.Error(w, http.StatusText(status), status)
}

type attemptKey struct{}

type attempt struct {
	skipped atomic.Bool
}

// NotForwarded marca que a requisição foi respondida localmente, sem chegar ao
// upstream. O middleware de barreira então não reporta Success nem Fail.
func NotForwarded(r *http.Request) {
	if a, ok := r.Context().Value(attemptKey{}).(*attempt); ok {
		a.skipped.Store(true)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
