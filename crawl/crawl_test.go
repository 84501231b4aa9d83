// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"

	"github.com/eosc-data/datahugger-go/backend"
	"github.com/eosc-data/datahugger-go/entry"
)

// fakeBackend is an in-memory directory tree keyed by PathCrawlRel, used to
// exercise the crawl engine without any network access.
type fakeBackend struct {
	mu       sync.Mutex
	tree     map[string][]entry.Entry
	listErrs map[string]error
	calls    map[string]int
}

func newFakeBackend(tree map[string][]entry.Entry) *fakeBackend {
	return &fakeBackend{tree: tree, listErrs: map[string]error{}, calls: map[string]int{}}
}

func (b *fakeBackend) ID() string { return "fake" }

func (b *fakeBackend) InitialListing(ctx context.Context) (backend.DirHandle, error) {
	return backend.DirHandle{PathCrawlRel: ""}, nil
}

func (b *fakeBackend) List(ctx context.Context, dir backend.DirHandle) (backend.Page, error) {
	b.mu.Lock()
	b.calls[dir.PathCrawlRel]++
	err := b.listErrs[dir.PathCrawlRel]
	entries := b.tree[dir.PathCrawlRel]
	b.mu.Unlock()
	if err != nil {
		return backend.Page{}, err
	}
	return backend.Page{Entries: entries}, nil
}

func (b *fakeBackend) DeriveRootURL(rawURL string) (string, error) { return rawURL, nil }
func (b *fakeBackend) FileHeaders(fileURL string) map[string]string { return nil }

func dirEntry(path string) entry.Entry {
	de, err := entry.NewDirEntry(path, "root", "")
	if err != nil {
		panic(err)
	}
	return entry.Entry{Dir: de}
}

func fileEntry(path string) entry.Entry {
	fe, err := entry.NewFileEntry(path, "root", "https://example.test/"+path, nil, nil, "")
	if err != nil {
		panic(err)
	}
	return entry.Entry{File: fe}
}

func fileEntrySized(path string, size int64) entry.Entry {
	fe, err := entry.NewFileEntry(path, "root", "https://example.test/"+path, &size, nil, "")
	if err != nil {
		panic(err)
	}
	return entry.Entry{File: fe}
}

// pagedBackend lists a single directory across a fixed sequence of pages,
// used to exercise cross-page path_crawl_rel collisions.
type pagedBackend struct {
	pages [][]entry.Entry
}

func (b *pagedBackend) ID() string { return "paged" }

func (b *pagedBackend) InitialListing(ctx context.Context) (backend.DirHandle, error) {
	return backend.DirHandle{PathCrawlRel: "", APIURL: "0"}, nil
}

func (b *pagedBackend) List(ctx context.Context, dir backend.DirHandle) (backend.Page, error) {
	idx, _ := strconv.Atoi(dir.APIURL)
	entries := b.pages[idx]
	more := idx+1 < len(b.pages)
	var next backend.DirHandle
	if more {
		next = backend.DirHandle{PathCrawlRel: "", APIURL: strconv.Itoa(idx + 1)}
	}
	return backend.Page{Entries: entries, More: more, Next: next}, nil
}

func (b *pagedBackend) DeriveRootURL(rawURL string) (string, error) { return rawURL, nil }
func (b *pagedBackend) FileHeaders(fileURL string) map[string]string { return nil }

func TestCrawlWalksNestedTree(t *testing.T) {
	tree := map[string][]entry.Entry{
		"":    {dirEntry("a"), fileEntry("root.txt")},
		"a":   {fileEntry("a/one.txt"), dirEntry("a/b")},
		"a/b": {fileEntry("a/b/two.txt")},
	}
	be := newFakeBackend(tree)
	e := New(be, 2)
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	st := e.Crawl(context.Background())
	var paths []string
	for r := range st.Chan() {
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		paths = append(paths, r.Entry.Path())
	}

	want := map[string]bool{"a": true, "root.txt": true, "a/one.txt": true, "a/b": true, "a/b/two.txt": true}
	if len(paths) != len(want) {
		t.Fatalf("got %d entries, want %d: %v", len(paths), len(want), paths)
	}
	for _, p := range paths {
		if !want[p] {
			t.Errorf("unexpected path %q", p)
		}
	}
}

func TestCrawlPropagatesFatalError(t *testing.T) {
	tree := map[string][]entry.Entry{
		"": {dirEntry("broken")},
	}
	be := newFakeBackend(tree)
	be.listErrs["broken"] = fmt.Errorf("boom")
	e := New(be, 1)
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	st := e.Crawl(context.Background())
	var sawErr bool
	for r := range st.Chan() {
		if r.Err != nil {
			sawErr = true
		}
	}
	if !sawErr {
		t.Fatal("expected a fatal error on the stream")
	}
}

func TestCrawlDedupesWithinPageKeepingLast(t *testing.T) {
	tree := map[string][]entry.Entry{
		"": {fileEntrySized("dup.txt", 1), fileEntrySized("dup.txt", 2)},
	}
	be := newFakeBackend(tree)
	e := New(be, 1)
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	st := e.Crawl(context.Background())
	var got []entry.Entry
	for r := range st.Chan() {
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		got = append(got, r.Entry)
	}

	if len(got) != 1 {
		t.Fatalf("got %d entries for duplicate path, want 1: %v", len(got), got)
	}
	if got[0].File.Size == nil || *got[0].File.Size != 2 {
		t.Errorf("expected the later (size=2) entry to survive, got %+v", got[0].File)
	}
}

func TestCrawlSuppressesCrossPageDuplicate(t *testing.T) {
	be := &pagedBackend{pages: [][]entry.Entry{
		{fileEntrySized("dup.txt", 1)},
		{fileEntrySized("dup.txt", 2)},
	}}
	e := New(be, 1)
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	st := e.Crawl(context.Background())
	var got []entry.Entry
	for r := range st.Chan() {
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		got = append(got, r.Entry)
	}

	if len(got) != 1 {
		t.Fatalf("got %d entries for cross-page duplicate path, want exactly 1 (no concurrent downloads of the same path): %v", len(got), got)
	}
}

func TestCrawlRespectsContextCancellation(t *testing.T) {
	tree := map[string][]entry.Entry{"": {fileEntry("x.txt")}}
	be := newFakeBackend(tree)
	e := New(be, 1)
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := e.Crawl(ctx)
	for range st.Chan() {
	}
}
