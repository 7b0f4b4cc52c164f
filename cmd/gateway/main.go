package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"barrier-gateway/internal/bootstrap"
	"barrier-gateway/internal/env"
	"barrier-gateway/middleware/barrier"
	"barrier-gateway/middleware/barrier/infra"

	log "github.com/sirupsen/logrus"
)

func main() {
	env.SetupLogging()

	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	file, err := bootstrap.BarrierFile()
	if err != nil {
		log.Fatalf("barriers config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stats, memStats, closeStats, err := bootstrap.Stats(ctx)
	if err != nil {
		log.Fatalf("stats error: %v", err)
	}
	defer closeStats()

	factory := file.Factory()
	registry := infra.NewRegistry(factory, infra.WithIdleTTL(cfg.idleTTL))
	// barreiras declaradas no arquivo existem desde o início e não expiram
	for _, name := range file.Names() {
		b, err := factory(name)
		if err != nil {
			log.Fatalf("barrier %q: %v", name, err)
		}
		registry.Register(name, b)
	}
	registry.StartJanitor(ctx)

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.WithError(err).WithField("path", r.URL.Path).Warn("proxy error")
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	keyFn := barrier.DefaultKeyFunc(cfg.keyHeader, cfg.trustXFF)
	if cfg.staticKey != "" {
		keyFn = barrier.StaticKey(cfg.staticKey)
	}

	h := buildHandler(proxy,
		barrier.Options{
			Barriers:         registry,
			Stats:            stats,
			KeyFn:            keyFn,
			RejectStatus:     http.StatusTooManyRequests,
			FailStatus:       cfg.failStatus,
			RetryAfter:       cfg.retryAfter,
			AddBarrierHeader: cfg.addHeaders,
		},
		barrier.ConcurrencyOptions{
			Max:            cfg.concurrencyMax,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.concurrencyTimeout,
		},
	)

	if cfg.diagAddr != "" {
		var statsHandler http.Handler
		if memStats != nil {
			statsHandler = barrier.StatsHandler(memStats)
		}
		diag := bootstrap.NewServer(cfg.diagAddr, bootstrap.DiagnosticsMux(barrier.DiagnosticsHandler(registry), statsHandler))
		go func() {
			if err := bootstrap.Serve(ctx, diag); err != nil {
				log.WithError(err).Error("diagnostics server stopped")
			}
		}()
		log.Infof("diagnostics listening on %s", cfg.diagAddr)
	}

	srv := bootstrap.NewServer(cfg.listenAddr, h)

	log.Infof("gateway listening on %s -> %s", cfg.listenAddr, target)
	log.Infof("barriers: declared=%v keyHeader=%q staticKey=%q trustXFF=%v idleTTL=%s", file.Names(), cfg.keyHeader, cfg.staticKey, cfg.trustXFF, cfg.idleTTL)
	log.Infof("concurrency: max=%d acquireTimeout=%s", cfg.concurrencyMax, cfg.concurrencyTimeout)

	if err := bootstrap.Serve(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// buildHandler monta a cadeia: limite de concorrência por fora, barreira por
// dentro. Rejeições por falta de vaga nunca chegam à barreira.
func buildHandler(upstream http.Handler, barrierOpts barrier.Options, concOpts barrier.ConcurrencyOptions) http.Handler {
	h := barrier.Middleware(barrierOpts)(upstream)
	return barrier.ConcurrencyMiddleware(concOpts)(h)
}

type config struct {
	listenAddr         string
	diagAddr           string
	upstreamURL        string
	keyHeader          string
	staticKey          string
	trustXFF           bool
	retryAfter         time.Duration
	failStatus         int
	addHeaders         bool
	idleTTL            time.Duration
	concurrencyMax     int
	concurrencyTimeout time.Duration
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = env.Default("LISTEN_ADDR", ":8080")
	cfg.diagAddr = env.Default("DIAG_ADDR", ":9090")
	cfg.upstreamURL = env.Default("UPSTREAM_URL", "")
	cfg.keyHeader = env.Default("BARRIER_KEY_HEADER", "")
	cfg.staticKey = env.Default("BARRIER_STATIC_KEY", "")
	cfg.trustXFF = env.BoolDefault("TRUST_XFF", false)
	cfg.retryAfter = env.DurationDefault("RETRY_AFTER", 1*time.Second)
	cfg.failStatus = env.IntDefault("BARRIER_FAIL_STATUS", http.StatusInternalServerError)
	cfg.addHeaders = env.BoolDefault("ADD_BARRIER_HEADERS", false)
	cfg.idleTTL = env.DurationDefault("BARRIER_IDLE_TTL", 24*time.Hour)
	cfg.concurrencyMax = env.IntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = env.DurationDefault("CONCURRENCY_TIMEOUT", 0)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.failStatus < 100 || cfg.failStatus > 599 {
		return config{}, errors.New("BARRIER_FAIL_STATUS must be a valid HTTP status")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}
