// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package crawl implements the recursive, bounded-concurrency traversal
// that turns one backend.Backend into a flat stream of entry.Entry values.
//
// Grounded on pkg/hfdownloader/downloader.go's channel-based concurrency
// limiter, generalized from a flat file list to recursive directory
// expansion: a fixed pool of worker goroutines (supervised by
// golang.org/x/sync/errgroup, which propagates the first fatal error) pulls
// DirHandles from an unbounded work queue, lists them, and re-enqueues any
// DirEntry found as further work.
package crawl

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/eosc-data/datahugger-go/backend"
	"github.com/eosc-data/datahugger-go/dherrors"
	"github.com/eosc-data/datahugger-go/entry"
	"github.com/eosc-data/datahugger-go/internal/backoff"
)

// Item is one unit of traversal work: a directory to list.
type Item struct {
	Dir backend.DirHandle
}

// Result is one value on the crawl stream: either an entry or a terminal
// error encountered while listing some directory.
type Result struct {
	Entry entry.Entry
	Err   error
}

// Stream is the flat output of a single Crawl call. Entries from different
// directories may interleave; a DirEntry may be emitted before, after, or
// interleaved with its own children (§9, Open Question 1).
type Stream struct {
	out chan Result
}

// Chan exposes the underlying channel. The iterator package wraps this
// rather than re-exposing a Next method directly, so both a blocking and a
// cooperative consumer can share the same channel.
func (s *Stream) Chan() <-chan Result { return s.out }

// Engine performs the traversal for one backend.
type Engine struct {
	Backend     backend.Backend
	Concurrency int
	Policy      backoff.Policy
	Logger      *slog.Logger
}

// New returns an Engine with the default crawl retry policy and a
// concurrency of at least 1.
func New(be backend.Backend, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		Backend:     be,
		Concurrency: concurrency,
		Policy:      backoff.DefaultCrawlPolicy(),
		Logger:      slog.Default(),
	}
}

// Crawl starts the traversal and returns immediately with a Stream; all
// work happens on goroutines owned by this call.
func (e *Engine) Crawl(ctx context.Context) *Stream {
	out := make(chan Result, e.Concurrency*2)
	st := &Stream{out: out}
	go e.run(ctx, out)
	return st
}

func (e *Engine) run(ctx context.Context, out chan<- Result) {
	defer close(out)

	root, err := e.Backend.InitialListing(ctx)
	if err != nil {
		out <- Result{Err: err}
		return
	}

	q := newQueue()
	q.push(Item{Dir: root})

	var seen sync.Map

	g, gctx := errgroup.WithContext(ctx)
	stop := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
			q.cancel()
		case <-stop:
		}
	}()
	defer close(stop)

	for i := 0; i < e.Concurrency; i++ {
		g.Go(func() error {
			return e.worker(gctx, q, out, &seen)
		})
	}
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		e.Logger.Error("crawl worker failed", "backend", e.Backend.ID(), "error", err)
	}
}

func (e *Engine) worker(ctx context.Context, q *queue, out chan<- Result, seen *sync.Map) error {
	for {
		item, ok := q.pop()
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			q.done()
			return err
		}

		page, err := e.listWithRetry(ctx, item.Dir)
		if err != nil {
			select {
			case out <- Result{Err: err}:
			case <-ctx.Done():
			}
			q.done()
			return err
		}

		for _, en := range dedupeLastWins(page.Entries) {
			if _, loaded := seen.LoadOrStore(en.Path(), true); loaded {
				// The earlier entry for this path was already sent on out;
				// it cannot be retracted, so the duplicate is suppressed
				// here rather than both reaching download.Engine, which
				// would race two writers on the same destination path.
				e.Logger.Warn("duplicate crawl path, keeping earlier entry", "path", en.Path(), "backend", e.Backend.ID())
				continue
			}
			select {
			case out <- Result{Entry: en}:
			case <-ctx.Done():
				q.done()
				return ctx.Err()
			}
			if en.IsDir() {
				q.push(Item{Dir: backend.DirHandle{PathCrawlRel: en.Dir.PathCrawlRel, APIURL: en.Dir.APIURL}})
			}
		}
		if page.More {
			q.push(Item{Dir: page.Next})
		}
		q.done()
	}
}

// dedupeLastWins keeps only the last occurrence of each path_crawl_rel
// within one page, preserving the order of those surviving occurrences
// (spec.md:73: "the later one overwrites the earlier"). Collisions across
// pages are handled separately in worker via the seen map, since an
// earlier page's entry may already be on the output channel by the time a
// later page arrives.
func dedupeLastWins(entries []entry.Entry) []entry.Entry {
	lastIndex := make(map[string]int, len(entries))
	for i, en := range entries {
		lastIndex[en.Path()] = i
	}
	out := make([]entry.Entry, 0, len(lastIndex))
	for i, en := range entries {
		if lastIndex[en.Path()] == i {
			out = append(out, en)
		}
	}
	return out
}

// listWithRetry retries Network(transient)/Timeout/Http(5xx,408,429) errors
// with the engine's backoff policy (§4.F: base 500ms, factor 2, jitter
// ±25%, 3 attempts by default), matching the teacher's utils.go backoff
// shape but with the crawl-specific constants from the spec rather than the
// download engine's HF-tuned ones.
func (e *Engine) listWithRetry(ctx context.Context, dir backend.DirHandle) (backend.Page, error) {
	seq := e.Policy.New()
	var lastErr error
	for attempt := 0; attempt < e.Policy.MaxAttempts; attempt++ {
		page, err := e.Backend.List(ctx, dir)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !dherrors.Retryable(err) {
			return backend.Page{}, err
		}
		if attempt == e.Policy.MaxAttempts-1 {
			break
		}
		if !backoff.Sleep(ctx, seq.Next()) {
			return backend.Page{}, dherrors.Cancelled()
		}
	}
	return backend.Page{}, lastErr
}
