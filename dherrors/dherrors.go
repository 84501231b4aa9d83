// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package dherrors defines the single error taxonomy shared by the backend,
// crawl, and download engines (SPEC_FULL.md §7), generalizing the teacher's
// pkg/hfdownloader/errors.go trio of ad-hoc error types into one Kind enum
// with a uniform Retryable() method.
package dherrors

import (
	"fmt"

	"github.com/eosc-data/datahugger-go/internal/httpclient"
)

// Kind is one of the taxonomy entries from SPEC_FULL.md §7.
type Kind int

const (
	KindUnsupported Kind = iota
	KindNetworkTransient
	KindNetworkFatal
	KindTimeout
	KindHTTP
	KindParse
	KindChecksumMismatch
	KindSecurity
	KindIO
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindUnsupported:
		return "Unsupported"
	case KindNetworkTransient:
		return "Network(transient)"
	case KindNetworkFatal:
		return "Network(fatal)"
	case KindTimeout:
		return "Timeout"
	case KindHTTP:
		return "Http"
	case KindParse:
		return "Parse"
	case KindChecksumMismatch:
		return "ChecksumMismatch"
	case KindSecurity:
		return "Security"
	case KindIO:
		return "Io"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the single error type returned across package boundaries for
// every kind in the taxonomy.
type Error struct {
	Kind Kind

	// Path is set for file/listing-scoped errors.
	Path string

	// HTTP-specific context.
	StatusCode int

	// Checksum-specific context.
	Algorithm string
	Expected  string
	Actual    string

	Cause error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindChecksumMismatch:
		return fmt.Sprintf("checksum mismatch for %s: %s expected %s, got %s", e.Path, e.Algorithm, e.Expected, e.Actual)
	case KindSecurity:
		return fmt.Sprintf("security: %s escapes destination directory", e.Path)
	case KindHTTP:
		if e.Cause != nil {
			return fmt.Sprintf("http %d for %s: %v", e.StatusCode, e.Path, e.Cause)
		}
		return fmt.Sprintf("http %d for %s", e.StatusCode, e.Path)
	case KindUnsupported:
		return fmt.Sprintf("unsupported url: %s", e.Path)
	default:
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
		}
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the failure is one the crawl/download engines'
// bounded-backoff loop should retry.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetworkTransient, KindTimeout:
		return true
	case KindHTTP:
		return e.StatusCode == 408 || e.StatusCode == 429 || e.StatusCode >= 500
	default:
		return false
	}
}

// Unsupported builds a KindUnsupported error for a URL no backend matched.
func Unsupported(url string) error { return &Error{Kind: KindUnsupported, Path: url} }

// Cancelled builds the terminal, clean Cancelled error.
func Cancelled() error { return &Error{Kind: KindCancelled} }

// Security builds a path-escape error.
func Security(path string) error { return &Error{Kind: KindSecurity, Path: path} }

// ChecksumMismatch builds a per-file verification failure.
func ChecksumMismatch(path, algorithm, expected, actual string) error {
	return &Error{Kind: KindChecksumMismatch, Path: path, Algorithm: algorithm, Expected: expected, Actual: actual}
}

// IO wraps a local filesystem failure.
func IO(path string, cause error) error { return &Error{Kind: KindIO, Path: path, Cause: cause} }

// Parse wraps a backend decode failure.
func Parse(path string, cause error) error { return &Error{Kind: KindParse, Path: path, Cause: cause} }

// FromHTTPClient classifies an httpclient.Error (Component A) into the
// taxonomy, preserving status code and retryability.
func FromHTTPClient(path string, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := err.(*httpclient.Error); ok {
		switch he.Kind {
		case httpclient.KindTransientNetwork:
			return &Error{Kind: KindNetworkTransient, Path: path, Cause: he}
		case httpclient.KindFatalNetwork:
			return &Error{Kind: KindNetworkFatal, Path: path, Cause: he}
		case httpclient.KindTimeout:
			return &Error{Kind: KindTimeout, Path: path, Cause: he}
		case httpclient.KindHTTP:
			return &Error{Kind: KindHTTP, Path: path, StatusCode: he.StatusCode, Cause: he}
		}
	}
	return &Error{Kind: KindNetworkFatal, Path: path, Cause: err}
}

// Retryable reports whether err (of any type produced by this package)
// should be retried. Non-*Error values are treated as non-retryable.
func Retryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable()
	}
	return false
}
