// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package doi resolves a bare DOI to its landing-page URL by following the
// doi.org redirect chain. Built in the teacher's plain net/http style: a
// redirect-following HEAD request needs nothing net/http does not already
// provide, and no dedicated DOI/redirect-chasing library appears anywhere
// in the retrieval pack (see DESIGN.md's ambient-stdlib justification).
package doi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultResolverConcurrency = 4

// Resolver issues redirect-following requests against doi.org.
type Resolver struct {
	client      *http.Client
	concurrency int
}

// NewResolver builds a Resolver with the given per-request timeout.
func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{
		client:      &http.Client{Timeout: timeout},
		concurrency: defaultResolverConcurrency,
	}
}

// Resolve issues HEAD https://doi.org/<doi>. With followRedirects false it
// returns the Location header from the first 30x response without chasing
// it further; with followRedirects true it follows the whole chain and
// returns the final request URL.
func (r *Resolver) Resolve(ctx context.Context, doi string, followRedirects bool) (string, error) {
	doi = strings.TrimPrefix(strings.TrimSpace(doi), "doi:")
	target := "https://doi.org/" + doi

	client := r.client
	if !followRedirects {
		noFollow := *r.client
		noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		client = &noFollow
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return "", fmt.Errorf("doi: building request for %s: %w", doi, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("doi: resolving %s: %w", doi, err)
	}
	defer resp.Body.Close()

	if !followRedirects {
		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			return "", fmt.Errorf("doi: %s did not redirect (status %d)", doi, resp.StatusCode)
		}
		loc := resp.Header.Get("Location")
		if loc == "" {
			return "", fmt.Errorf("doi: %s redirected with no Location header", doi)
		}
		return loc, nil
	}

	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String(), nil
	}
	return target, nil
}

// Result pairs one DOI with its resolved URL or error, for ResolveMany.
type Result struct {
	DOI string
	URL string
	Err error
}

// ResolveMany fans Resolve out over a small, bounded concurrency, mirroring
// the crawl engine's worker-pool shape at a smaller scale.
func (r *Resolver) ResolveMany(ctx context.Context, dois []string, followRedirects bool) []Result {
	results := make([]Result, len(dois))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, r.concurrency)

	for i, d := range dois {
		i, d := i, d
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				results[i] = Result{DOI: d, Err: gctx.Err()}
				return nil
			}
			defer func() { <-sem }()

			url, err := r.Resolve(gctx, d, followRedirects)
			results[i] = Result{DOI: d, URL: url, Err: err}
			return nil
		})
	}
	g.Wait()
	return results
}
