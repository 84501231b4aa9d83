// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"net/url"
	"os"
	"sync"

	"github.com/eosc-data/datahugger-go/internal/httpclient"
)

// Predicate reports whether a backend can handle u (typically a host check
// plus an optional path/query shape check).
type Predicate func(u *url.URL) bool

// Factory constructs a Backend for a URL this registration's Predicate
// matched, returning the canonical root URL alongside it.
type Factory func(ctx context.Context, u *url.URL, pool *httpclient.Pool, token string) (Backend, string, error)

// Registration pairs a predicate with the factory it guards.
type Registration struct {
	Name      string
	Predicate Predicate
	New       Factory
}

// Registry holds an ordered, first-match-wins list of registrations. It is
// immutable after process init (§5): entries are appended only by each
// backend package's init() via Register.
type Registry struct {
	mu            sync.RWMutex
	registrations []Registration
}

// global is the process-wide registry every backend/<name> package
// registers itself into.
var global = &Registry{}

// Register appends r to the global registry. Called from each backend
// package's init(), so registration order is the order in which Go
// initializes the backend packages (sorted by import path for sibling
// packages), not the order of the blank imports that pull them in.
func Register(r Registration) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.registrations = append(global.registrations, r)
}

// Global returns the process-wide registry.
func Global() *Registry { return global }

// ErrUnsupported indicates no registered predicate matched the URL.
type ErrUnsupported struct{ URL string }

func (e *ErrUnsupported) Error() string { return "backend: unsupported url: " + e.URL }

// Resolve walks registrations in order and returns the first match's
// backend and canonical root URL. When token is empty, the "github",
// "dryad" and "huggingface" registrations receive GITHUB_TOKEN,
// DRYAD_API_KEY and HF_TOKEN from the environment respectively.
func (r *Registry) Resolve(ctx context.Context, pool *httpclient.Pool, rawURL, token string) (Backend, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", &ErrUnsupported{URL: rawURL}
	}

	r.mu.RLock()
	regs := make([]Registration, len(r.registrations))
	copy(regs, r.registrations)
	r.mu.RUnlock()

	for _, reg := range regs {
		if reg.Predicate(u) {
			if token == "" {
				switch reg.Name {
				case "github":
					token = os.Getenv("GITHUB_TOKEN")
				case "dryad":
					token = os.Getenv("DRYAD_API_KEY")
				case "huggingface":
					token = os.Getenv("HF_TOKEN")
				}
			}
			be, root, err := reg.New(ctx, u, pool, token)
			if err != nil {
				return nil, "", err
			}
			return be, root, nil
		}
	}
	return nil, "", &ErrUnsupported{URL: rawURL}
}
