// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package zenodo implements backend.Backend for Zenodo records, whose REST
// API returns a flat file list in one call (files[].checksum as
// "algorithm:hex"), the same no-directory-listing shape as
// backend/dataverse, adapted here to Zenodo's record JSON.
package zenodo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/eosc-data/datahugger-go/backend"
	"github.com/eosc-data/datahugger-go/dherrors"
	"github.com/eosc-data/datahugger-go/entry"
	"github.com/eosc-data/datahugger-go/internal/httpclient"
)

func init() {
	backend.Register(backend.Registration{
		Name:      "zenodo",
		Predicate: isZenodoURL,
		New:       newFromURL,
	})
}

func isZenodoURL(u *url.URL) bool {
	h := strings.ToLower(u.Host)
	return h == "zenodo.org" || h == "sandbox.zenodo.org"
}

type zenodoRecord struct {
	Files []zenodoFile `json:"files"`
}

type zenodoFile struct {
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
	Links    struct {
		Self string `json:"self"`
	} `json:"links"`
}

// Backend talks to one Zenodo record's files API.
type Backend struct {
	pool     *httpclient.Pool
	token    string
	apiHost  string
	recordID string
	rootURL  string
}

func newFromURL(ctx context.Context, u *url.URL, pool *httpclient.Pool, token string) (backend.Backend, string, error) {
	id := recordIDFromPath(u.Path)
	if id == "" {
		return nil, "", fmt.Errorf("zenodo: could not find record id in %s", u.String())
	}
	b := &Backend{pool: pool, token: token, apiHost: u.Host, recordID: id}
	root, err := b.DeriveRootURL(u.String())
	if err != nil {
		return nil, "", err
	}
	b.rootURL = root
	return b, root, nil
}

func recordIDFromPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		if part == "record" || part == "records" {
			if i+1 < len(parts) {
				if _, err := strconv.Atoi(parts[i+1]); err == nil {
					return parts[i+1]
				}
			}
		}
	}
	return ""
}

func (b *Backend) ID() string { return "zenodo" }

func (b *Backend) DeriveRootURL(rawURL string) (string, error) {
	return fmt.Sprintf("https://%s/records/%s", b.apiHost, b.recordID), nil
}

func (b *Backend) FileHeaders(fileURL string) map[string]string {
	if b.token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + b.token}
}

func (b *Backend) InitialListing(ctx context.Context) (backend.DirHandle, error) {
	return backend.DirHandle{PathCrawlRel: "", APIURL: b.recordAPIURL()}, nil
}

func (b *Backend) recordAPIURL() string {
	return fmt.Sprintf("https://%s/api/records/%s", b.apiHost, b.recordID)
}

func (b *Backend) List(ctx context.Context, dir backend.DirHandle) (backend.Page, error) {
	resp, err := b.pool.Do(ctx, "GET", b.recordAPIURL(), b.FileHeaders(""))
	if err != nil {
		return backend.Page{}, dherrors.FromHTTPClient(dir.PathCrawlRel, err)
	}
	defer resp.Body.Close()

	var rec zenodoRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return backend.Page{}, dherrors.Parse(dir.PathCrawlRel, err)
	}

	var out []entry.Entry
	for _, f := range rec.Files {
		clean, err := entry.ValidatePath(f.Key)
		if err != nil {
			continue
		}
		var checksums []entry.Checksum
		if alg, hex, ok := strings.Cut(f.Checksum, ":"); ok {
			checksums = append(checksums, entry.Checksum{Algorithm: entry.NormalizeAlgorithm(alg), Hex: strings.ToLower(hex)})
		}
		var size *int64
		if f.Size > 0 {
			s := f.Size
			size = &s
		}
		fe, ferr := entry.NewFileEntry(clean, b.rootURL, f.Links.Self, size, checksums, "")
		if ferr != nil {
			continue
		}
		out = append(out, entry.Entry{File: fe})
	}
	return backend.Page{Entries: out}, nil
}
