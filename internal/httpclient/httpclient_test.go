// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got == "" {
			t.Errorf("missing User-Agent header")
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	p := New(DefaultConfig())
	resp, err := p.Do(context.Background(), "GET", srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestDoHTTPErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
		w.Write([]byte("unavailable"))
	}))
	defer srv.Close()

	p := New(DefaultConfig())
	_, err := p.Do(context.Background(), "GET", srv.URL, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var he *Error
	if !asError(err, &he) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !he.Retryable() {
		t.Error("503 should be retryable")
	}
}

func TestDoHTTPNotFoundNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer srv.Close()

	p := New(DefaultConfig())
	_, err := p.Do(context.Background(), "GET", srv.URL, nil)
	var he *Error
	if !asError(err, &he) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if he.Retryable() {
		t.Error("404 should not be retryable")
	}
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
