// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package httpclient provides the single process-wide HTTP client pool
// shared by every backend and the download engine, and classifies transport
// failures into the error taxonomy of SPEC_FULL.md §7.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Pool is the shared, connection-pooling HTTP client. The zero value is not
// usable; construct with New.
type Pool struct {
	client    *http.Client
	userAgent string
}

// Config tunes the underlying transport. Zero values fall back to the
// defaults below.
type Config struct {
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	RequestTimeout      time.Duration
	UserAgent           string
}

// DefaultConfig mirrors the teacher's buildHTTPClient tuning.
func DefaultConfig() Config {
	return Config{
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		RequestTimeout:      60 * time.Second,
		UserAgent:           "datahugger/1",
	}
}

// New builds a Pool with connection keep-alive and a per-host connection
// cap, ready to be shared read-only across backends and downloads.
func New(cfg Config) *Pool {
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = DefaultConfig().MaxIdleConnsPerHost
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = DefaultConfig().IdleConnTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          cfg.MaxIdleConnsPerHost * 8,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Pool{
		client:    &http.Client{Transport: tr, Timeout: cfg.RequestTimeout},
		userAgent: cfg.UserAgent,
	}
}

// Response is a streaming byte source plus the metadata a backend or the
// download engine needs; Body must be closed by the caller.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Do issues a request with default headers applied and classifies any
// failure per §7. headers are merged on top of the pool's defaults
// (e.g. an Authorization bearer token).
func (p *Pool) Do(ctx context.Context, method, rawURL string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindFatalNetwork, Cause: err}
	}
	req.Header.Set("User-Agent", p.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := readExcerpt(resp.Body, 2048)
		resp.Body.Close()
		return nil, &Error{
			Kind:       KindHTTP,
			StatusCode: resp.StatusCode,
			Excerpt:    excerpt,
			Cause:      fmt.Errorf("http %d for %s", resp.StatusCode, rawURL),
		}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}

// Raw exposes the underlying *http.Client for callers (e.g. range-request
// downloads) that need direct control over the request/response cycle.
func (p *Pool) Raw() *http.Client { return p.client }

func readExcerpt(r io.Reader, n int) string {
	b := make([]byte, n)
	k, _ := io.ReadFull(r, b)
	return strings.TrimSpace(string(b[:k]))
}

// Kind classifies a Pool error into the taxonomy consumed by the crawl and
// download engines' retry logic.
type Kind int

const (
	KindTransientNetwork Kind = iota
	KindFatalNetwork
	KindTimeout
	KindHTTP
)

// Error is returned by Pool.Do and wraps the underlying cause with enough
// context for retry classification.
type Error struct {
	Kind       Kind
	StatusCode int
	Excerpt    string
	Cause      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Excerpt)
	default:
		return e.Cause.Error()
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the operation that produced this error should
// be retried per §7: transient network errors, timeouts, 5xx, 408 and 429.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransientNetwork, KindTimeout:
		return true
	case KindHTTP:
		if e.StatusCode == 408 || e.StatusCode == 429 {
			return true
		}
		return e.StatusCode >= 500
	default:
		return false
	}
}

func classifyTransportError(err error) *Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Cause: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &Error{Kind: KindTimeout, Cause: err}
		}
		// DNS and TLS failures are classified fatal; connection reset/refused
		// are transient and worth retrying.
		msg := urlErr.Err.Error()
		if isTransientMessage(msg) {
			return &Error{Kind: KindTransientNetwork, Cause: err}
		}
		return &Error{Kind: KindFatalNetwork, Cause: err}
	}
	return &Error{Kind: KindTransientNetwork, Cause: err}
}

func isTransientMessage(msg string) bool {
	for _, s := range []string{"connection reset", "connection refused", "broken pipe", "EOF", "i/o timeout"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
