// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package backend defines the capability-set interface every repository
// adapter implements (§4.E) and the predicate-ordered registry that maps a
// resolved URL to a concrete backend (§4.D).
//
// This is the one component the teacher (a single-repository HuggingFace
// downloader) has no analogue for; it is modeled in the teacher's own idiom
// of ordered, explicit checks — the teacher's finalize() in its own
// internal/cli/root.go (not carried into this tree), which resolved
// "repo:filter" ambiguity by ordered string inspection
// rather than reflection — generalized here from string parsing to URL
// predicate matching.
package backend

import (
	"context"

	"github.com/eosc-data/datahugger-go/entry"
)

// DirHandle is an opaque, backend-specific continuation token sufficient to
// enumerate one directory's children. Only the backend that produced it may
// interpret its contents.
type DirHandle struct {
	// PathCrawlRel is the crawl-relative path of the directory this handle
	// names; the root directory's path is "".
	PathCrawlRel string
	// APIURL is the backend-specific token (an API URL, a JSON:API cursor,
	// a git tree SHA, ...). Opaque outside the owning backend.
	APIURL string
}

// Page is one page of a directory listing. More/Next let the crawl engine
// keep paging the same directory without the backend blocking internally.
type Page struct {
	Entries []entry.Entry
	More    bool
	Next    DirHandle
}

// Backend is the capability set every repository adapter implements. The
// crawl engine holds backends by this abstract reference only; it never
// knows which concrete repository it is talking to.
type Backend interface {
	// ID returns a short, stable name for this backend ("huggingface",
	// "dataverse", ...), used in logs and in Dataset.ID().
	ID() string

	// InitialListing returns the handle for the dataset root directory.
	InitialListing(ctx context.Context) (DirHandle, error)

	// List returns one page of the given directory's children. Backends
	// that do not paginate always return More=false.
	List(ctx context.Context, dir DirHandle) (Page, error)

	// DeriveRootURL idempotently normalizes the input URL (or the URL this
	// backend was constructed from) into the canonical identifier for the
	// dataset.
	DeriveRootURL(rawURL string) (string, error)

	// FileHeaders returns any extra headers required to download fileURL
	// (e.g. a Dryad bearer token). Returns nil when no extra headers are
	// needed.
	FileHeaders(fileURL string) map[string]string
}
