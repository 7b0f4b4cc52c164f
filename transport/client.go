// Package transport é o cliente HTTP usado para buscar datasets no upstream.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

// Config do cliente. CAFile/CertFile/KeyFile são opcionais; com CertFile e
// KeyFile o cliente apresenta certificado (mTLS).
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	HTTP2    bool
	CAFile   string
	CertFile string
	KeyFile  string
	// MaxBody limita o tamanho de uma resposta. Zero usa 4 MiB.
	MaxBody int64
}

// StatusError é devolvido quando o upstream responde >= 400.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s answered %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

type Client struct {
	base    *url.URL
	http    *http.Client
	maxBody int64
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("transport: base URL required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = 4 << 20
	}

	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = tlsConfig
	if cfg.HTTP2 {
		if err := http2.ConfigureTransport(t); err != nil {
			return nil, fmt.Errorf("transport: configure http2: %w", err)
		}
	}

	return &Client{
		base:    base,
		http:    &http.Client{Transport: t, Timeout: cfg.Timeout},
		maxBody: cfg.MaxBody,
	}, nil
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("transport: read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("transport: failed to parse CA certificate")
		}
		tlsConfig.RootCAs = pool
	}

	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return nil, errors.New("transport: client certificate needs both cert and key")
	}
	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("transport: load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// FetchJSON faz GET em path (relativo à base) e decodifica um objeto JSON.
func (c *Client) FetchJSON(ctx context.Context, path string) (map[string]any, error) {
	u := c.base.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: get %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBody))
		return nil, &StatusError{Code: resp.StatusCode, URL: u.String()}
	}

	var out map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.maxBody)).Decode(&out); err != nil {
		return nil, fmt.Errorf("transport: decode %s: %w", u, err)
	}
	return out, nil
}

// Fetcher amarra um path a FetchJSON, no formato esperado pelo coordenador.
func (c *Client) Fetcher(path string) func(ctx context.Context) (map[string]any, error) {
	return func(ctx context.Context) (map[string]any, error) {
		return c.FetchJSON(ctx, path)
	}
}
