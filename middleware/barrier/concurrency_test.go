package barrier

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestConcurrencyMiddleware_DisabledPassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := ConcurrencyMiddleware(ConcurrencyOptions{})(next)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/", nil))
	if w.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", w.Code)
	}
}

func TestConcurrencyMiddleware_TimesOutWhenNoSlot(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	firstDone := make(chan int, 1)

	// handler que segura a vaga até liberarmos
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	h := ConcurrencyMiddleware(ConcurrencyOptions{
		Max:            1,
		AcquireTimeout: 25 * time.Millisecond,
	})(next)

	go func() {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/", nil))
		firstDone <- w.Code
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		close(release)
		t.Fatalf("timeout waiting first request to start")
	}

	// a segunda roda na goroutine do teste: só volta depois do timeout
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "http://example/", nil))
	if w2.Code != http.StatusServiceUnavailable {
		t.Errorf("expected second request 503, got %d", w2.Code)
	}

	close(release)
	if code := <-firstDone; code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", code)
	}
}
