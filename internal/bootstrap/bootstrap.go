// Package bootstrap monta as peças comuns aos binários a partir do ambiente.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"barrier-gateway/internal/env"
	"barrier-gateway/middleware/barrier/config"
	"barrier-gateway/middleware/barrier/domain"
	"barrier-gateway/middleware/barrier/infra"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// BarrierFile lê BARRIERS_FILE. Sem arquivo, monta um default a partir de
// BARRIER_KIND, BARRIER_MAX_AGE, BARRIER_WINDOW_MINUTES, BARRIER_MAX_RETRIES e
// BARRIER_LOCATION.
func BarrierFile() (config.File, error) {
	if path := env.Default("BARRIERS_FILE", ""); path != "" {
		return config.Load(path)
	}

	spec := config.Spec{
		Kind:       env.Default("BARRIER_KIND", config.KindDelta),
		MaxAge:     env.DurationDefault("BARRIER_MAX_AGE", time.Second),
		MaxRetries: env.IntDefault("BARRIER_MAX_RETRIES", infra.DefaultMaxRetries),
		Location:   env.Default("BARRIER_LOCATION", ""),
	}
	minutes, err := ParseMinutes(env.Default("BARRIER_WINDOW_MINUTES", "0,10"))
	if err != nil {
		return config.File{}, fmt.Errorf("BARRIER_WINDOW_MINUTES: %w", err)
	}
	spec.AllowedWindowMinutes = minutes

	if err := spec.Validate(); err != nil {
		return config.File{}, fmt.Errorf("default barrier: %w", err)
	}
	return config.File{Default: &spec}, nil
}

// ParseMinutes lê "low,high" (ou "low-high").
func ParseMinutes(v string) ([]int, error) {
	low, high, ok := strings.Cut(v, ",")
	if !ok {
		low, high, ok = strings.Cut(v, "-")
	}
	if !ok {
		return nil, fmt.Errorf("expected low,high, got %q", v)
	}
	l, err := strconv.Atoi(strings.TrimSpace(low))
	if err != nil {
		return nil, fmt.Errorf("invalid low minute: %w", err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(high))
	if err != nil {
		return nil, fmt.Errorf("invalid high minute: %w", err)
	}
	return []int{l, h}, nil
}

// Stats devolve o store de estatísticas. Com BARRIER_STATS_ENABLED=true grava
// no Redis; caso contrário usa um store em memória (exposto em GET /stats).
// O close devolvido deve ser chamado na saída.
func Stats(ctx context.Context) (domain.StatsStore, *infra.MemoryStatsStore, func(), error) {
	if !env.BoolDefault("BARRIER_STATS_ENABLED", false) {
		mem := infra.NewMemoryStatsStore(infra.WithTrackKeys(env.BoolDefault("BARRIER_STATS_TRACK_KEYS", false)))
		return mem, mem, func() {}, nil
	}

	addr := env.Default("BARRIER_STATS_REDIS_ADDR", "")
	if strings.TrimSpace(addr) == "" {
		return nil, nil, nil, errors.New("BARRIER_STATS_REDIS_ADDR is required when BARRIER_STATS_ENABLED=true")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: env.Default("BARRIER_STATS_REDIS_PASSWORD", ""),
		DB:       env.IntDefault("BARRIER_STATS_REDIS_DB", 0),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	_, err := rdb.Ping(pingCtx).Result()
	cancel()
	if err != nil {
		_ = rdb.Close()
		return nil, nil, nil, fmt.Errorf("redis stats ping: %w", err)
	}

	store := infra.NewRedisStatsStore(
		rdb,
		infra.WithStatsPrefix(env.Default("BARRIER_STATS_PREFIX", "barrier:stats")),
		infra.WithStatsTTL(env.DurationDefault("BARRIER_STATS_TTL", 24*time.Hour)),
		infra.WithStatsBucket(env.Default("BARRIER_STATS_BUCKET", "minute")),
		infra.WithStatsTrackKeys(env.BoolDefault("BARRIER_STATS_TRACK_KEYS", false)),
	)
	log.WithField("addr", addr).Info("barrier stats: redis")
	return store, nil, func() { _ = rdb.Close() }, nil
}

// NewServer aplica os timeouts padrão dos binários.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
}

// Serve roda srv até ctx encerrar e então faz shutdown gracioso.
func Serve(ctx context.Context, srv *http.Server) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server %s: %w", srv.Addr, err)
	}
	return nil
}

// DiagnosticsMux junta os handlers de diagnóstico num único mux.
func DiagnosticsMux(barriers http.Handler, stats http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/barriers", barriers)
	mux.Handle("/barriers/", barriers)
	if stats != nil {
		mux.Handle("/stats", stats)
	}
	return mux
}
