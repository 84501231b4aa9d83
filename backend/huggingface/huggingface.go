// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package huggingface implements backend.Backend for the Hugging Face Hub,
// ported from the teacher project's own domain:
// pkg/hfdownloader/client.go (hfNode/hfLfsInfo JSON shapes, URL builders)
// and pkg/hfdownloader/plan.go (checksum/size extraction rules), adapted
// from a recursive single-call walk into one page per directory so the
// crawl engine (not the backend) drives recursion.
package huggingface

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/eosc-data/datahugger-go/backend"
	"github.com/eosc-data/datahugger-go/dherrors"
	"github.com/eosc-data/datahugger-go/entry"
	"github.com/eosc-data/datahugger-go/internal/httpclient"
)

func init() {
	backend.Register(backend.Registration{
		Name:      "huggingface",
		Predicate: isHFURL,
		New:       newFromURL,
	})
}

func isHFURL(u *url.URL) bool {
	h := strings.ToLower(u.Host)
	return h == "huggingface.co" || h == "www.huggingface.co"
}

// hfNode mirrors the teacher's hfNode/hfLfsInfo (pkg/hfdownloader/client.go).
type hfNode struct {
	Type   string  `json:"type"` // "file"|"directory" (also seen: "blob"|"tree")
	Path   string  `json:"path"`
	Size   int64   `json:"size,omitempty"`
	LFS    *hfLFS  `json:"lfs,omitempty"`
	Sha256 string  `json:"sha256,omitempty"`
}

type hfLFS struct {
	Oid    string `json:"oid,omitempty"`
	Size   int64  `json:"size,omitempty"`
	Sha256 string `json:"sha256,omitempty"`
}

// Backend talks to the Hugging Face Hub tree/resolve APIs for one repo@rev.
type Backend struct {
	pool      *httpclient.Pool
	token     string
	repo      string
	revision  string
	isDataset bool
	rootURL   string
}

func newFromURL(ctx context.Context, u *url.URL, pool *httpclient.Pool, token string) (backend.Backend, string, error) {
	repo, isDataset, revision, err := parseHFURL(u)
	if err != nil {
		return nil, "", err
	}
	b := &Backend{pool: pool, token: token, repo: repo, revision: revision, isDataset: isDataset}
	root, err := b.DeriveRootURL(u.String())
	if err != nil {
		return nil, "", err
	}
	b.rootURL = root
	return b, root, nil
}

// parseHFURL extracts "owner/name", dataset-ness, and revision from a
// huggingface.co landing URL, e.g.
// https://huggingface.co/datasets/facebook/flores/tree/main
func parseHFURL(u *url.URL) (repo string, isDataset bool, revision string, err error) {
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "", false, "", fmt.Errorf("huggingface: cannot parse repo from %s", u.String())
	}
	revision = "main"
	if parts[0] == "datasets" {
		isDataset = true
		parts = parts[1:]
	}
	if len(parts) < 2 {
		return "", false, "", fmt.Errorf("huggingface: expected owner/name in %s", u.String())
	}
	repo = parts[0] + "/" + parts[1]
	rest := parts[2:]
	if len(rest) >= 2 && (rest[0] == "tree" || rest[0] == "resolve" || rest[0] == "blob") {
		revision = rest[1]
	}
	return repo, isDataset, revision, nil
}

func (b *Backend) ID() string { return "huggingface" }

func (b *Backend) DeriveRootURL(rawURL string) (string, error) {
	if b.isDataset {
		return fmt.Sprintf("https://huggingface.co/datasets/%s/tree/%s", b.repo, b.revision), nil
	}
	return fmt.Sprintf("https://huggingface.co/%s/tree/%s", b.repo, b.revision), nil
}

func (b *Backend) FileHeaders(fileURL string) map[string]string { return nil }

func (b *Backend) InitialListing(ctx context.Context) (backend.DirHandle, error) {
	return backend.DirHandle{PathCrawlRel: "", APIURL: b.treeURL("")}, nil
}

func (b *Backend) List(ctx context.Context, dir backend.DirHandle) (backend.Page, error) {
	apiURL := dir.APIURL
	if apiURL == "" {
		apiURL = b.treeURL(dir.PathCrawlRel)
	}

	headers := map[string]string{}
	if b.token != "" {
		headers["Authorization"] = "Bearer " + b.token
	}

	resp, err := b.pool.Do(ctx, "GET", apiURL, headers)
	if err != nil {
		return backend.Page{}, dherrors.FromHTTPClient(dir.PathCrawlRel, err)
	}
	defer resp.Body.Close()

	var nodes []hfNode
	if err := json.NewDecoder(resp.Body).Decode(&nodes); err != nil {
		return backend.Page{}, dherrors.Parse(dir.PathCrawlRel, err)
	}

	var out []entry.Entry
	for _, n := range nodes {
		name := filepath.Base(n.Path)
		rel, perr := entry.JoinPath(dir.PathCrawlRel, name)
		if perr != nil {
			continue
		}
		switch n.Type {
		case "directory", "tree":
			de, err := entry.NewDirEntry(rel, b.rootURL, b.treeURL(n.Path))
			if err != nil {
				continue
			}
			out = append(out, entry.Entry{Dir: de})
		default:
			fe, err := b.toFileEntry(n, rel)
			if err != nil {
				continue
			}
			out = append(out, entry.Entry{File: fe})
		}
	}
	return backend.Page{Entries: out}, nil
}

func (b *Backend) toFileEntry(n hfNode, rel string) (*entry.FileEntry, error) {
	isLFS := n.LFS != nil
	var dlURL string
	if isLFS {
		dlURL = b.resolveURL(n.Path)
	} else {
		dlURL = b.rawURL(n.Path)
	}

	var size *int64
	if isLFS && n.LFS.Size > 0 {
		s := n.LFS.Size
		size = &s
	} else if n.Size > 0 {
		s := n.Size
		size = &s
	}

	sha := n.Sha256
	if sha == "" && n.LFS != nil {
		sha = n.LFS.Sha256
	}
	var checksums []entry.Checksum
	if len(sha) == 64 {
		checksums = append(checksums, entry.Checksum{Algorithm: entry.SHA256, Hex: strings.ToLower(sha)})
	}

	return entry.NewFileEntry(rel, b.rootURL, dlURL, size, checksums, "")
}

func (b *Backend) treeURL(prefix string) string {
	base := "https://huggingface.co/api/models"
	if b.isDataset {
		base = "https://huggingface.co/api/datasets"
	}
	if prefix == "" {
		return fmt.Sprintf("%s/%s/tree/%s", base, b.repo, url.PathEscape(b.revision))
	}
	return fmt.Sprintf("%s/%s/tree/%s/%s", base, b.repo, url.PathEscape(b.revision), pathEscapeAll(prefix))
}

func (b *Backend) rawURL(path string) string {
	if b.isDataset {
		return fmt.Sprintf("https://huggingface.co/datasets/%s/raw/%s/%s", b.repo, url.PathEscape(b.revision), pathEscapeAll(path))
	}
	return fmt.Sprintf("https://huggingface.co/%s/raw/%s/%s", b.repo, url.PathEscape(b.revision), pathEscapeAll(path))
}

func (b *Backend) resolveURL(path string) string {
	if b.isDataset {
		return fmt.Sprintf("https://huggingface.co/datasets/%s/resolve/%s/%s", b.repo, url.PathEscape(b.revision), pathEscapeAll(path))
	}
	return fmt.Sprintf("https://huggingface.co/%s/resolve/%s/%s", b.repo, url.PathEscape(b.revision), pathEscapeAll(path))
}

func pathEscapeAll(p string) string {
	segs := strings.Split(p, "/")
	for i := range segs {
		segs[i] = url.PathEscape(segs[i])
	}
	return strings.Join(segs, "/")
}
