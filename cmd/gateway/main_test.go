package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"barrier-gateway/middleware/barrier"
	"barrier-gateway/middleware/barrier/domain"
	"barrier-gateway/middleware/barrier/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig_RequiresUpstream(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "")
	_, err := readConfig()
	require.Error(t, err)
}

func TestReadConfig_Defaults(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://localhost:8081")

	cfg, err := readConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.listenAddr)
	assert.Equal(t, ":9090", cfg.diagAddr)
	assert.Equal(t, http.StatusInternalServerError, cfg.failStatus)
	assert.Equal(t, time.Second, cfg.retryAfter)
	assert.Equal(t, 100, cfg.concurrencyMax)
}

func TestReadConfig_RejectsInvalidFailStatus(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://localhost:8081")
	t.Setenv("BARRIER_FAIL_STATUS", "42")

	_, err := readConfig()
	require.Error(t, err)
}

func TestBuildHandler_SlotRejectionsDoNotReachBarrier(t *testing.T) {
	clock := domain.NewManualClock(time.Date(2024, time.June, 23, 10, 5, 0, 0, time.UTC))
	w, err := infra.NewTimeWindowBarrier(infra.Window{Low: 0, High: 10}, 3, 2*time.Hour,
		infra.WithClock(clock), infra.WithLocation(time.UTC))
	require.NoError(t, err)
	registry := infra.NewRegistry(nil)
	registry.Register("upstream", w)
	require.NoError(t, registry.ForceNext("upstream"))

	started := make(chan struct{})
	release := make(chan struct{})
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	h := buildHandler(upstream,
		barrier.Options{Barriers: registry, Clock: clock, KeyFn: barrier.StaticKey("upstream")},
		barrier.ConcurrencyOptions{Max: 1, RejectStatus: http.StatusServiceUnavailable, AcquireTimeout: 10 * time.Millisecond},
	)

	firstDone := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://gateway/", nil))
		firstDone <- rec.Code
	}()
	<-started

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://gateway/", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	}

	dump := w.Dump()
	assert.Equal(t, 0, dump[domain.AttrFailures])
	assert.Nil(t, dump[domain.AttrCooldown])
	assert.Equal(t, true, dump[domain.AttrForceNext])

	close(release)
	assert.Equal(t, http.StatusOK, <-firstDone)
}
