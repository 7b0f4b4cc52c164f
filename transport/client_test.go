package transport

import (
	"context"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestNewClient_CertNeedsKey(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://example", CertFile: "client.pem"})
	require.Error(t, err)
}

func TestFetchJSON_DecodesObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/measure", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"measure": {"value": 42}}`)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL + "/api/v1"})
	require.NoError(t, err)

	data, err := c.Fetcher("measure")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"measure": map[string]any{"value": float64(42)}}, data)
}

func TestFetchJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.FetchJSON(context.Background(), "/data")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
}

func TestFetchJSON_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.FetchJSON(context.Background(), "/data")
	require.Error(t, err)
}

func TestFetchJSON_HTTP2OverTLS(t *testing.T) {
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"proto": "`+r.Proto+`"}`)
	}))
	srv.EnableHTTP2 = true
	srv.StartTLS()
	defer srv.Close()

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caFile, pemBytes, 0o600))

	c, err := NewClient(Config{BaseURL: srv.URL, HTTP2: true, CAFile: caFile})
	require.NoError(t, err)

	data, err := c.FetchJSON(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, "HTTP/2.0", data["proto"])
}
