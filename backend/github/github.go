// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package github implements backend.Backend over the GitHub Contents API,
// used when a dataset is published as a plain repository tree rather than
// through a dedicated repository's JSON API. Modeled on the same
// tree-recursion shape as backend/huggingface, substituting GitHub's
// /repos/:owner/:repo/contents/:path endpoint for the Hub's tree API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/eosc-data/datahugger-go/backend"
	"github.com/eosc-data/datahugger-go/dherrors"
	"github.com/eosc-data/datahugger-go/entry"
	"github.com/eosc-data/datahugger-go/internal/httpclient"
)

func init() {
	backend.Register(backend.Registration{
		Name:      "github",
		Predicate: isGitHubURL,
		New:       newFromURL,
	})
}

func isGitHubURL(u *url.URL) bool {
	return strings.EqualFold(u.Host, "github.com")
}

type ghContentsItem struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"` // "file" | "dir"
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

// Backend talks to one GitHub repository's contents API at a fixed ref.
type Backend struct {
	pool    *httpclient.Pool
	token   string
	owner   string
	repo    string
	ref     string
	rootURL string
}

func newFromURL(ctx context.Context, u *url.URL, pool *httpclient.Pool, token string) (backend.Backend, string, error) {
	owner, repo, ref, err := parseGitHubURL(u)
	if err != nil {
		return nil, "", err
	}
	b := &Backend{pool: pool, token: token, owner: owner, repo: repo, ref: ref}
	root, err := b.DeriveRootURL(u.String())
	if err != nil {
		return nil, "", err
	}
	b.rootURL = root
	return b, root, nil
}

// parseGitHubURL reads https://github.com/<owner>/<repo>[/tree/<ref>].
func parseGitHubURL(u *url.URL) (owner, repo, ref string, err error) {
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", "", "", fmt.Errorf("github: expected owner/repo in %s", u.String())
	}
	owner, repo = parts[0], parts[1]
	ref = "HEAD"
	if len(parts) >= 4 && parts[2] == "tree" {
		ref = parts[3]
	}
	return owner, repo, ref, nil
}

func (b *Backend) ID() string { return "github" }

func (b *Backend) DeriveRootURL(rawURL string) (string, error) {
	return fmt.Sprintf("https://github.com/%s/%s/tree/%s", b.owner, b.repo, b.ref), nil
}

func (b *Backend) FileHeaders(fileURL string) map[string]string { return nil }

func (b *Backend) InitialListing(ctx context.Context) (backend.DirHandle, error) {
	return backend.DirHandle{PathCrawlRel: "", APIURL: b.contentsURL("")}, nil
}

func (b *Backend) contentsURL(path string) string {
	base := fmt.Sprintf("https://api.github.com/repos/%s/%s/contents", b.owner, b.repo)
	if path != "" {
		base += "/" + pathEscapeAll(path)
	}
	return base + "?ref=" + url.QueryEscape(b.ref)
}

func (b *Backend) List(ctx context.Context, dir backend.DirHandle) (backend.Page, error) {
	apiURL := dir.APIURL
	if apiURL == "" {
		apiURL = b.contentsURL(dir.PathCrawlRel)
	}

	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if b.token != "" {
		headers["Authorization"] = "Bearer " + b.token
	}

	resp, err := b.pool.Do(ctx, "GET", apiURL, headers)
	if err != nil {
		return backend.Page{}, dherrors.FromHTTPClient(dir.PathCrawlRel, err)
	}
	defer resp.Body.Close()

	var items []ghContentsItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return backend.Page{}, dherrors.Parse(dir.PathCrawlRel, err)
	}

	var out []entry.Entry
	for _, it := range items {
		rel, perr := entry.JoinPath(dir.PathCrawlRel, it.Name)
		if perr != nil {
			continue
		}
		switch it.Type {
		case "dir":
			de, err := entry.NewDirEntry(rel, b.rootURL, b.contentsURL(it.Path))
			if err != nil {
				continue
			}
			out = append(out, entry.Entry{Dir: de})
		case "file":
			// GitHub's blob sha is a git object hash (sha1 over "blob
			// <size>\0<content>"), not a plain content digest, so it
			// cannot feed entry.Checksum without producing spurious
			// mismatches during verification; no checksum is declared.
			var size *int64
			if it.Size > 0 {
				s := it.Size
				size = &s
			}
			fe, ferr := entry.NewFileEntry(rel, b.rootURL, it.DownloadURL, size, nil, "")
			if ferr != nil {
				continue
			}
			out = append(out, entry.Entry{File: fe})
		}
	}
	return backend.Page{Entries: out}, nil
}

func pathEscapeAll(p string) string {
	segs := strings.Split(p, "/")
	for i := range segs {
		segs[i] = url.PathEscape(segs[i])
	}
	return strings.Join(segs, "/")
}
