package barrier

import (
	"net/http"
	"time"

	"barrier-gateway/middleware/barrier/application"
	"barrier-gateway/middleware/barrier/infra"

	log "github.com/sirupsen/logrus"
)

// ConcurrencyOptions limita requisições simultâneas atravessando o gateway.
// Max <= 0 desliga o limite.
type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
}

func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	slots := application.FetchSlots{
		Pool:           infra.NewSlotPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := slots.Acquire(r.Context())
			if err != nil {
				log.WithError(err).WithField("path", r.URL.Path).Debug("request rejected: no slot")
				NotForwarded(r)
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
