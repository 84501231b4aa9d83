// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package hal implements backend.Backend for HAL (Hyper Articles en
// Ligne), the French national open archive. A HAL document usually
// attaches a handful of files rather than a directory tree; its search
// API returns their URLs directly in files_s, with no size or checksum
// metadata, so unlike backend/dataverse this backend leaves FileEntry.Size
// and Checksums unset. The download engine therefore neither validates
// these files nor skips an existing local copy of them by size.
package hal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/eosc-data/datahugger-go/backend"
	"github.com/eosc-data/datahugger-go/dherrors"
	"github.com/eosc-data/datahugger-go/entry"
	"github.com/eosc-data/datahugger-go/internal/httpclient"
)

func init() {
	backend.Register(backend.Registration{
		Name:      "hal",
		Predicate: isHALURL,
		New:       newFromURL,
	})
}

func isHALURL(u *url.URL) bool {
	h := strings.ToLower(u.Host)
	return h == "hal.science" || h == "hal.archives-ouvertes.fr" || strings.HasSuffix(h, ".hal.science")
}

type halSearchResponse struct {
	Response struct {
		Docs []halDoc `json:"docs"`
	} `json:"response"`
}

type halDoc struct {
	HalID  string   `json:"halId_s"`
	FilesS []string `json:"files_s"`
}

// Backend talks to HAL's search API for one halId.
type Backend struct {
	pool    *httpclient.Pool
	halID   string
	rootURL string
}

func newFromURL(ctx context.Context, u *url.URL, pool *httpclient.Pool, token string) (backend.Backend, string, error) {
	id := halIDFromPath(u.Path)
	if id == "" {
		return nil, "", fmt.Errorf("hal: could not find halId in %s", u.String())
	}
	b := &Backend{pool: pool, halID: id}
	root, err := b.DeriveRootURL(u.String())
	if err != nil {
		return nil, "", err
	}
	b.rootURL = root
	return b, root, nil
}

func halIDFromPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for _, part := range parts {
		if strings.HasPrefix(part, "hal-") {
			return part
		}
	}
	return ""
}

func (b *Backend) ID() string { return "hal" }

func (b *Backend) DeriveRootURL(rawURL string) (string, error) {
	return fmt.Sprintf("https://hal.science/%s", b.halID), nil
}

func (b *Backend) FileHeaders(fileURL string) map[string]string { return nil }

func (b *Backend) InitialListing(ctx context.Context) (backend.DirHandle, error) {
	return backend.DirHandle{PathCrawlRel: "", APIURL: b.searchURL()}, nil
}

func (b *Backend) searchURL() string {
	v := url.Values{}
	v.Set("q", "halId_s:"+b.halID)
	v.Set("fl", "halId_s,files_s")
	v.Set("wt", "json")
	return "https://api.archives-ouvertes.fr/search/?" + v.Encode()
}

func (b *Backend) List(ctx context.Context, dir backend.DirHandle) (backend.Page, error) {
	apiURL := dir.APIURL
	if apiURL == "" {
		apiURL = b.searchURL()
	}
	resp, err := b.pool.Do(ctx, "GET", apiURL, nil)
	if err != nil {
		return backend.Page{}, dherrors.FromHTTPClient(dir.PathCrawlRel, err)
	}
	defer resp.Body.Close()

	var sr halSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return backend.Page{}, dherrors.Parse(dir.PathCrawlRel, err)
	}
	if len(sr.Response.Docs) == 0 {
		return backend.Page{}, nil
	}

	var out []entry.Entry
	for _, fileURL := range sr.Response.Docs[0].FilesS {
		name := path.Base(fileURL)
		clean, err := entry.ValidatePath(name)
		if err != nil {
			continue
		}
		fe, ferr := entry.NewFileEntry(clean, b.rootURL, fileURL, nil, nil, "")
		if ferr != nil {
			continue
		}
		out = append(out, entry.Entry{File: fe})
	}
	return backend.Page{Entries: out}, nil
}
