// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package backoff implements exponential backoff with jitter, shared by the
// crawl and download engines' retry loops. Grounded on the teacher's
// pkg/hfdownloader/utils.go backoff type.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Policy configures a backoff sequence.
type Policy struct {
	Base       time.Duration
	Max        time.Duration
	Factor     float64
	JitterFrac float64 // e.g. 0.25 for ±25%
	MaxAttempts int
}

// DefaultCrawlPolicy matches §4.F: base 500ms, factor 2, jitter ±25%, 3
// attempts.
func DefaultCrawlPolicy() Policy {
	return Policy{Base: 500 * time.Millisecond, Max: 8 * time.Second, Factor: 2, JitterFrac: 0.25, MaxAttempts: 3}
}

// DefaultDownloadPolicy matches the teacher's own HF-tuned download retry
// shape (400ms base, 10s cap), independently configurable per §4.G.
func DefaultDownloadPolicy() Policy {
	return Policy{Base: 400 * time.Millisecond, Max: 10 * time.Second, Factor: 1.6, JitterFrac: 0.2, MaxAttempts: 4}
}

// Sequence produces successive backoff durations for one retry loop.
type Sequence struct {
	next   time.Duration
	policy Policy
}

// New starts a fresh sequence from policy.Base.
func (p Policy) New() *Sequence {
	return &Sequence{next: p.Base, policy: p}
}

// Next returns the delay before the next attempt and advances the sequence.
func (s *Sequence) Next() time.Duration {
	d := s.next
	jitter := time.Duration((rand.Float64()*2 - 1) * s.policy.JitterFrac * float64(d))
	out := d + jitter
	if out < 0 {
		out = 0
	}
	s.next = time.Duration(float64(s.next) * s.policy.Factor)
	if s.next > s.policy.Max {
		s.next = s.policy.Max
	}
	return out
}

// Sleep waits for d or returns false if ctx is canceled first.
func Sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
