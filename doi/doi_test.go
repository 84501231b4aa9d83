// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package doi

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestResolveTrimsDOIPrefix(t *testing.T) {
	r := NewResolver(5 * time.Second)
	// Exercises the prefix-trim/target-building logic without a network
	// call by checking the error path fails for an unroutable target
	// rather than a malformed one.
	_, err := r.Resolve(context.Background(), "doi:10.0.0/bad", false)
	if err == nil {
		t.Skip("network available in this environment; prefix-trim path covered indirectly")
	}
	if strings.Contains(err.Error(), "building request") {
		t.Errorf("prefix was not trimmed before building the request: %v", err)
	}
}

func TestResolveManyPreservesOrderAndReportsPerDOIErrors(t *testing.T) {
	r := NewResolver(200 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	dois := []string{"10.1/a", "10.2/b", "10.3/c"}
	results := r.ResolveMany(ctx, dois, false)
	if len(results) != len(dois) {
		t.Fatalf("got %d results, want %d", len(results), len(dois))
	}
	for i, d := range dois {
		if results[i].DOI != d {
			t.Errorf("result %d DOI = %q, want %q (order not preserved)", i, results[i].DOI, d)
		}
	}
}
