// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package arxiv implements backend.Backend for arXiv e-prints. An arXiv
// entry is a single source tarball, not a tree, so InitialListing's one
// List call returns exactly one FileEntry and no DirEntry — the simplest
// instance of the optional-DirEntry shape also used by backend/hal.
package arxiv

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/eosc-data/datahugger-go/backend"
	"github.com/eosc-data/datahugger-go/entry"
	"github.com/eosc-data/datahugger-go/internal/httpclient"
)

func init() {
	backend.Register(backend.Registration{
		Name:      "arxiv",
		Predicate: isArXivURL,
		New:       newFromURL,
	})
}

func isArXivURL(u *url.URL) bool {
	return strings.EqualFold(u.Host, "arxiv.org")
}

// Backend serves the single e-print tarball for one arXiv identifier.
type Backend struct {
	id      string
	rootURL string
}

func newFromURL(ctx context.Context, u *url.URL, pool *httpclient.Pool, token string) (backend.Backend, string, error) {
	id := arxivIDFromPath(u.Path)
	if id == "" {
		return nil, "", fmt.Errorf("arxiv: could not find identifier in %s", u.String())
	}
	b := &Backend{id: id}
	root, err := b.DeriveRootURL(u.String())
	if err != nil {
		return nil, "", err
	}
	b.rootURL = root
	return b, root, nil
}

func arxivIDFromPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	id := parts[len(parts)-1]
	id = strings.TrimSuffix(id, ".pdf")
	return id
}

func (b *Backend) ID() string { return "arxiv" }

func (b *Backend) DeriveRootURL(rawURL string) (string, error) {
	return fmt.Sprintf("https://arxiv.org/abs/%s", b.id), nil
}

func (b *Backend) FileHeaders(fileURL string) map[string]string { return nil }

func (b *Backend) InitialListing(ctx context.Context) (backend.DirHandle, error) {
	return backend.DirHandle{PathCrawlRel: "", APIURL: "single"}, nil
}

func (b *Backend) List(ctx context.Context, dir backend.DirHandle) (backend.Page, error) {
	name := strings.ReplaceAll(b.id, "/", "_") + ".tar.gz"
	clean, err := entry.ValidatePath(name)
	if err != nil {
		return backend.Page{}, err
	}
	dlURL := fmt.Sprintf("https://export.arxiv.org/e-print/%s", b.id)
	fe, err := entry.NewFileEntry(clean, b.rootURL, dlURL, nil, nil, "application/x-eprint-tar")
	if err != nil {
		return backend.Page{}, err
	}
	return backend.Page{Entries: []entry.Entry{{File: fe}}}, nil
}
