// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package dryad implements backend.Backend for Dryad datasets. Dryad's API
// is two-step (resolve the dataset's latest version, then list that
// version's files) and paginates its file list via HAL _links.next, which
// this backend threads through backend.Page.Next the same way
// backend/osf threads its JSON:API "next" link.
package dryad

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
		Name:      "dryad",
		Predicate: isDryadURL,
		New:       newFromURL,
	})
}

func isDryadURL(u *url.URL) bool {
	return strings.EqualFold(u.Host, "datadryad.org")
}

type dryadDataset struct {
	Links struct {
		StashVersion struct {
			Href string `json:"href"`
		} `json:"stash:version"`
	} `json:"_links"`
}

type dryadVersionFiles struct {
	Embedded struct {
		Files []dryadFile `json:"stash:files"`
	} `json:"_embedded"`
	Links struct {
		Next struct {
			Href string `json:"href"`
		} `json:"next"`
	} `json:"_links"`
}

type dryadFile struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
	Links  struct {
		Download struct {
			Href string `json:"href"`
		} `json:"stash:download"`
	} `json:"_links"`
}

// Backend talks to one Dryad dataset identified by its DOI.
type Backend struct {
	pool    *httpclient.Pool
	token   string
	doi     string
	rootURL string
}

func newFromURL(ctx context.Context, u *url.URL, pool *httpclient.Pool, token string) (backend.Backend, string, error) {
	doi := doiFromPath(u.Path)
	if doi == "" {
		return nil, "", fmt.Errorf("dryad: could not find doi in %s", u.String())
	}
	b := &Backend{pool: pool, token: token, doi: doi}
	root, err := b.DeriveRootURL(u.String())
	if err != nil {
		return nil, "", err
	}
	b.rootURL = root
	return b, root, nil
}

// doiFromPath reads /stash/dataset/doi:10.5061/dryad.xxxxx or a bare
// /resource/doi:... landing path.
func doiFromPath(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.Index(p, "doi:"); i >= 0 {
		return p[i:]
	}
	return ""
}

func (b *Backend) ID() string { return "dryad" }

func (b *Backend) DeriveRootURL(rawURL string) (string, error) {
	return fmt.Sprintf("https://datadryad.org/stash/dataset/%s", url.PathEscape(b.doi)), nil
}

func (b *Backend) FileHeaders(fileURL string) map[string]string {
	if b.token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + b.token}
}

func (b *Backend) InitialListing(ctx context.Context) (backend.DirHandle, error) {
	return backend.DirHandle{PathCrawlRel: "", APIURL: ""}, nil
}

func (b *Backend) datasetURL() string {
	return fmt.Sprintf("https://datadryad.org/api/v2/datasets/%s", url.QueryEscape(b.doi))
}

func (b *Backend) List(ctx context.Context, dir backend.DirHandle) (backend.Page, error) {
	filesURL := dir.APIURL
	if filesURL == "" {
		versionHref, err := b.latestVersionHref(ctx)
		if err != nil {
			return backend.Page{}, err
		}
		filesURL = "https://datadryad.org" + versionHref + "/files"
	}

	resp, err := b.pool.Do(ctx, "GET", filesURL, b.FileHeaders(""))
	if err != nil {
		return backend.Page{}, dherrors.FromHTTPClient(dir.PathCrawlRel, err)
	}
	defer resp.Body.Close()

	var vf dryadVersionFiles
	if err := json.NewDecoder(resp.Body).Decode(&vf); err != nil {
		return backend.Page{}, dherrors.Parse(dir.PathCrawlRel, err)
	}

	var out []entry.Entry
	for _, f := range vf.Embedded.Files {
		clean, err := entry.ValidatePath(f.Path)
		if err != nil {
			continue
		}
		var checksums []entry.Checksum
		if f.Digest != "" {
			checksums = append(checksums, entry.Checksum{Algorithm: entry.MD5, Hex: strings.ToLower(f.Digest)})
		}
		var size *int64
		if f.Size > 0 {
			s := f.Size
			size = &s
		}
		downloadURL := f.Links.Download.Href
		if downloadURL != "" && !strings.HasPrefix(downloadURL, "http") {
			downloadURL = "https://datadryad.org" + downloadURL
		}
		fe, ferr := entry.NewFileEntry(clean, b.rootURL, downloadURL, size, checksums, "")
		if ferr != nil {
			continue
		}
		out = append(out, entry.Entry{File: fe})
	}

	page := backend.Page{Entries: out}
	if vf.Links.Next.Href != "" {
		page.More = true
		page.Next = backend.DirHandle{PathCrawlRel: dir.PathCrawlRel, APIURL: "https://datadryad.org" + vf.Links.Next.Href}
	}
	return page, nil
}

func (b *Backend) latestVersionHref(ctx context.Context) (string, error) {
	resp, err := b.pool.Do(ctx, "GET", b.datasetURL(), b.FileHeaders(""))
	if err != nil {
		return "", dherrors.FromHTTPClient("", err)
	}
	defer resp.Body.Close()

	var ds dryadDataset
	if err := json.NewDecoder(resp.Body).Decode(&ds); err != nil {
		return "", dherrors.Parse("", err)
	}
	if ds.Links.StashVersion.Href == "" {
		return "", fmt.Errorf("dryad: no stash:version link for %s", b.doi)
	}
	return ds.Links.StashVersion.Href, nil
}
