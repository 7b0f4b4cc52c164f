package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"barrier-gateway/internal/bootstrap"
	"barrier-gateway/internal/env"
	"barrier-gateway/middleware/barrier"
	"barrier-gateway/middleware/barrier/application"
	barriercfg "barrier-gateway/middleware/barrier/config"
	"barrier-gateway/middleware/barrier/infra"
	"barrier-gateway/transport"

	log "github.com/sirupsen/logrus"
)

func main() {
	env.SetupLogging()

	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	file, err := bootstrap.BarrierFile()
	if err != nil {
		log.Fatalf("barriers config error: %v", err)
	}
	if len(file.Names()) == 0 {
		log.Fatalf("no datasets declared: set BARRIERS_FILE with a barriers section")
	}

	client, err := transport.NewClient(transport.Config{
		BaseURL:  cfg.upstreamURL,
		Timeout:  cfg.fetchTimeout,
		HTTP2:    cfg.http2,
		CAFile:   cfg.caFile,
		CertFile: cfg.certFile,
		KeyFile:  cfg.keyFile,
	})
	if err != nil {
		log.Fatalf("upstream client error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stats, memStats, closeStats, err := bootstrap.Stats(ctx)
	if err != nil {
		log.Fatalf("stats error: %v", err)
	}
	defer closeStats()

	registry := infra.NewRegistry(nil)
	coord := application.NewCoordinator(registry,
		application.WithStats(stats),
		application.WithFetchSlots(application.FetchSlots{
			Pool:           infra.NewSlotPool(cfg.fetchConcurrency),
			AcquireTimeout: cfg.acquireTimeout,
		}),
	)
	if err := registerDatasets(file, registry, coord, client); err != nil {
		log.Fatalf("datasets error: %v", err)
	}

	if cfg.diagAddr != "" {
		var statsHandler http.Handler
		if memStats != nil {
			statsHandler = barrier.StatsHandler(memStats)
		}
		mux := bootstrap.DiagnosticsMux(barrier.DiagnosticsHandler(registry), statsHandler)
		mux.Handle("GET /data", dataHandler(coord))
		diag := bootstrap.NewServer(cfg.diagAddr, mux)
		go func() {
			if err := bootstrap.Serve(ctx, diag); err != nil {
				log.WithError(err).Error("diagnostics server stopped")
			}
		}()
		log.Infof("diagnostics listening on %s", cfg.diagAddr)
	}

	log.Infof("poller: upstream=%s datasets=%v interval=%s concurrency=%d http2=%v",
		cfg.upstreamURL, coord.Datasets(), cfg.interval, cfg.fetchConcurrency, cfg.http2)

	if err := coord.Run(ctx, cfg.interval); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("poller stopped: %v", err)
	}
	log.Info("poller stopped")
}

// registerDatasets cria, para cada barreira declarada, a barreira fixa no
// registro e o fetcher do path correspondente.
func registerDatasets(file barriercfg.File, registry *infra.Registry, coord *application.Coordinator, client *transport.Client) error {
	factory := file.Factory()
	for _, name := range file.Names() {
		b, err := factory(name)
		if err != nil {
			return err
		}
		registry.Register(name, b)

		spec, _ := file.SpecFor(name)
		coord.Register(name, client.Fetcher(datasetPath(name, spec)))
	}
	return nil
}

func datasetPath(name string, spec barriercfg.Spec) string {
	if p := strings.TrimSpace(spec.Path); p != "" {
		return p
	}
	return "/" + name
}

func dataHandler(coord *application.Coordinator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(coord.Data()); err != nil {
			log.WithError(err).Debug("failed to write data response")
		}
	})
}

type config struct {
	upstreamURL      string
	diagAddr         string
	interval         time.Duration
	fetchTimeout     time.Duration
	fetchConcurrency int
	acquireTimeout   time.Duration
	http2            bool
	caFile           string
	certFile         string
	keyFile          string
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.upstreamURL = env.Default("UPSTREAM_URL", "")
	cfg.diagAddr = env.Default("DIAG_ADDR", ":9091")
	cfg.interval = env.DurationDefault("POLL_INTERVAL", 30*time.Second)
	cfg.fetchTimeout = env.DurationDefault("FETCH_TIMEOUT", 10*time.Second)
	cfg.fetchConcurrency = env.IntDefault("FETCH_CONCURRENCY", 4)
	cfg.acquireTimeout = env.DurationDefault("FETCH_ACQUIRE_TIMEOUT", 0)
	cfg.http2 = env.BoolDefault("UPSTREAM_HTTP2", false)
	cfg.caFile = env.Default("UPSTREAM_CA_FILE", "")
	cfg.certFile = env.Default("UPSTREAM_CERT_FILE", "")
	cfg.keyFile = env.Default("UPSTREAM_KEY_FILE", "")

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.interval <= 0 {
		return config{}, errors.New("POLL_INTERVAL must be > 0")
	}
	if cfg.fetchConcurrency < 0 {
		return config{}, errors.New("FETCH_CONCURRENCY must be >= 0")
	}
	return cfg, nil
}
