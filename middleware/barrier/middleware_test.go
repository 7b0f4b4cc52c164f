package barrier

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"barrier-gateway/middleware/barrier/domain"
	"barrier-gateway/middleware/barrier/infra"
)

var t0 = time.Date(2024, time.June, 23, 10, 5, 0, 0, time.UTC)

func deltaRegistry(t *testing.T, clock domain.Clock, delta time.Duration) *infra.Registry {
	t.Helper()
	return infra.NewRegistry(func(key string) (domain.Barrier, error) {
		return infra.NewTimeDeltaBarrier(delta, infra.WithClock(clock), infra.WithName(key))
	}, infra.WithRegistryClock(clock))
}

func TestMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	clock := domain.NewManualClock(t0)
	reg := deltaRegistry(t, clock, 90*time.Second)
	stats := infra.NewMemoryStatsStore()

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := Middleware(Options{
		Barriers:         reg,
		Stats:            stats,
		Clock:            clock,
		AddBarrierHeader: true,
	})(next)

	// 1) primeira passa e registra sucesso
	r1 := httptest.NewRequest(http.MethodGet, "http://example/api/measure", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get(HeaderKey); got != "10.0.0.1" {
		t.Fatalf("expected %s header to be 10.0.0.1, got %q", HeaderKey, got)
	}

	// 2) segunda cai no delta mínimo
	clock.Advance(30 * time.Second)
	r2 := httptest.NewRequest(http.MethodGet, "http://example/api/measure", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get(HeaderCode); got != "NO_MAX_AGE" {
		t.Fatalf("expected %s=NO_MAX_AGE, got %q", HeaderCode, got)
	}
	if got := w2.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After=60, got %q", got)
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
	if got := stats.Total(); got.Allowed != 1 || got.Denied != 1 || got.Success != 1 {
		t.Fatalf("unexpected counters %+v", got)
	}
}

func TestMiddleware_KeyByHeader(t *testing.T) {
	clock := domain.NewManualClock(t0)
	reg := deltaRegistry(t, clock, time.Hour)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{Barriers: reg, Clock: clock, KeyHeader: "X-Api-Key"})(next)

	// duas chaves diferentes => ambos devem passar (cada chave tem sua própria barreira)
	for _, key := range []string{"k1", "k2"} {
		r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
		r.Header.Set("X-Api-Key", key)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for key %s, got %d", key, w.Code)
		}
	}
	if got := reg.Keys(); len(got) != 2 {
		t.Fatalf("expected 2 barriers, got %v", got)
	}
}

func TestMiddleware_UpstreamErrorsFeedRetryBurstAndCooldown(t *testing.T) {
	clock := domain.NewManualClock(t0)
	reg := infra.NewRegistry(nil)
	w, err := infra.NewTimeWindowBarrier(infra.Window{Low: 0, High: 10}, 2, time.Hour,
		infra.WithClock(clock), infra.WithLocation(time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reg.Register("upstream", w)

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	h := Middleware(Options{Barriers: reg, Clock: clock, KeyFn: StaticKey("upstream")})(next)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example/", nil))
		codes = append(codes, rec.Code)
		if i == 2 {
			if got := rec.Header().Get(HeaderCode); got != "COOLDOWN" {
				t.Fatalf("expected COOLDOWN, got %q", got)
			}
			// cooldown = max_age/2 = 30min
			if got := rec.Header().Get("Retry-After"); got != "1800" {
				t.Fatalf("expected Retry-After=1800, got %q", got)
			}
		}
	}

	want := []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("expected statuses %v, got %v", want, codes)
		}
	}
	if calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls)
	}
}

func TestMiddleware_ClientErrorsCountAsSuccess(t *testing.T) {
	clock := domain.NewManualClock(t0)
	reg := deltaRegistry(t, clock, time.Minute)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	h := Middleware(Options{Barriers: reg, Clock: clock, KeyFn: StaticKey("k")})(next)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "http://example/", nil))

	b, ok := reg.Lookup("k")
	if !ok {
		t.Fatalf("expected barrier for k")
	}
	got, ok := b.Dump()[domain.AttrLastSuccess].(time.Time)
	if !ok || !got.Equal(t0) {
		t.Fatalf("expected success at %s, got %v", t0, b.Dump()[domain.AttrLastSuccess])
	}
}

func TestMiddleware_RejectStatusConfigurable(t *testing.T) {
	clock := domain.NewManualClock(t0)
	reg := deltaRegistry(t, clock, time.Minute)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	h := Middleware(Options{
		Barriers:     reg,
		Clock:        clock,
		KeyFn:        StaticKey("k"),
		RejectStatus: http.StatusServiceUnavailable,
	})(next)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "http://example/", nil))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestRetryAfterSeconds_RoundsUp(t *testing.T) {
	if got := retryAfterSeconds(2500 * time.Millisecond); got != "3" {
		t.Fatalf("expected 3, got %q", got)
	}
	if got := retryAfterSeconds(0); got != "0" {
		t.Fatalf("expected 0, got %q", got)
	}
}

func windowOnStaticKey(t *testing.T, clock domain.Clock) (*infra.Registry, *infra.TimeWindowBarrier) {
	t.Helper()
	reg := infra.NewRegistry(nil)
	w, err := infra.NewTimeWindowBarrier(infra.Window{Low: 0, High: 10}, 3, 2*time.Hour,
		infra.WithClock(clock), infra.WithLocation(time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reg.Register("upstream", w)
	return reg, w
}

func TestMiddleware_OneAttemptInFlightPerKey(t *testing.T) {
	clock := domain.NewManualClock(t0)
	reg, _ := windowOnStaticKey(t, clock)

	var hits atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(entered)
		}
		<-release
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Options{Barriers: reg, Clock: clock, KeyFn: StaticKey("upstream")})(next)

	firstDone := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example/", nil))
		firstDone <- rec.Code
	}()
	<-entered

	// as demais chegam enquanto a primeira ainda está no upstream
	var wg sync.WaitGroup
	codes := make([]string, 4)
	statuses := make([]int, 4)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example/", nil))
			statuses[i], codes[i] = rec.Code, rec.Header().Get(HeaderCode)
		}(i)
	}
	wg.Wait()

	for i := range codes {
		if statuses[i] != http.StatusTooManyRequests || codes[i] != CodeInFlight {
			t.Fatalf("expected 429 %s, got %d %q", CodeInFlight, statuses[i], codes[i])
		}
	}

	close(release)
	if code := <-firstDone; code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", code)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected 1 upstream hit inside the window, got %d", got)
	}

	// com a primeira concluída, a próxima cai na regra da janela
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example/", nil))
	if got := rec.Header().Get(HeaderCode); got != "NO_DELTA" {
		t.Fatalf("expected NO_DELTA after success, got %q", got)
	}
}

func TestMiddleware_LocalRejectionIsNotReported(t *testing.T) {
	clock := domain.NewManualClock(t0)
	reg, w := windowOnStaticKey(t, clock)
	w.ForceNext()

	entered := make(chan struct{})
	release := make(chan struct{})
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	// limite de concorrência dentro da barreira: a 503 local não pode virar Fail
	inner := ConcurrencyMiddleware(ConcurrencyOptions{Max: 1, AcquireTimeout: 10 * time.Millisecond})(upstream)
	h := Middleware(Options{Barriers: reg, Clock: clock, KeyFn: StaticKey("upstream"), AllowConcurrent: true})(inner)

	firstDone := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example/", nil))
		firstDone <- rec.Code
	}()
	<-entered

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example/", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	}

	dump := reg.Dumps()["upstream"]
	if dump[domain.AttrFailures] != 0 || dump[domain.AttrCooldown] != nil || dump[domain.AttrForceNext] != true {
		t.Fatalf("barrier must be untouched by local rejections, got %v", dump)
	}

	close(release)
	if code := <-firstDone; code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", code)
	}
}
