// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package dataone implements backend.Backend for DataONE member nodes,
// using the coordinating node's Solr query endpoint to list every object
// whose resourceMap matches the dataset's package identifier, the same
// flat single-call shape as backend/zenodo and backend/dataverse — DataONE
// has no directory hierarchy, only a flat member list per resource map.
package dataone

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
		Name:      "dataone",
		Predicate: isDataONEURL,
		New:       newFromURL,
	})
}

func isDataONEURL(u *url.URL) bool {
	h := strings.ToLower(u.Host)
	return strings.HasSuffix(h, ".dataone.org")
}

type dataoneSolrResponse struct {
	Response struct {
		Docs []dataoneDoc `json:"docs"`
	} `json:"response"`
}

type dataoneDoc struct {
	Identifier        string `json:"identifier"`
	Size              int64  `json:"size"`
	Checksum          string `json:"checksum"`
	ChecksumAlgorithm string `json:"checksumAlgorithm"`
	FormatID          string `json:"formatId"`
	FileName          string `json:"fileName"`
}

// Backend talks to one DataONE coordinating node's Solr query endpoint for
// a fixed resource map (package) identifier.
type Backend struct {
	pool    *httpclient.Pool
	token   string
	cnHost  string
	pid     string
	rootURL string
}

func newFromURL(ctx context.Context, u *url.URL, pool *httpclient.Pool, token string) (backend.Backend, string, error) {
	pid := u.Query().Get("pid")
	if pid == "" {
		pid = pidFromPath(u.Path)
	}
	if pid == "" {
		return nil, "", fmt.Errorf("dataone: could not find package identifier in %s", u.String())
	}
	b := &Backend{pool: pool, token: token, cnHost: u.Host, pid: pid}
	root, err := b.DeriveRootURL(u.String())
	if err != nil {
		return nil, "", err
	}
	b.rootURL = root
	return b, root, nil
}

func pidFromPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func (b *Backend) ID() string { return "dataone" }

func (b *Backend) DeriveRootURL(rawURL string) (string, error) {
	return fmt.Sprintf("https://%s/cn/v2/resolve/%s", b.cnHost, url.PathEscape(b.pid)), nil
}

func (b *Backend) FileHeaders(fileURL string) map[string]string {
	if b.token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + b.token}
}

func (b *Backend) InitialListing(ctx context.Context) (backend.DirHandle, error) {
	return backend.DirHandle{PathCrawlRel: "", APIURL: b.solrURL()}, nil
}

func (b *Backend) solrURL() string {
	q := fmt.Sprintf(`resourceMap:"%s"`, b.pid)
	v := url.Values{}
	v.Set("q", q)
	v.Set("fl", "identifier,size,checksum,checksumAlgorithm,formatId,fileName")
	v.Set("rows", "1000")
	v.Set("wt", "json")
	return fmt.Sprintf("https://%s/cn/v2/query/solr/?%s", b.cnHost, v.Encode())
}

func (b *Backend) objectURL(pid string) string {
	return fmt.Sprintf("https://%s/cn/v2/object/%s", b.cnHost, url.PathEscape(pid))
}

func (b *Backend) List(ctx context.Context, dir backend.DirHandle) (backend.Page, error) {
	resp, err := b.pool.Do(ctx, "GET", b.solrURL(), b.FileHeaders(""))
	if err != nil {
		return backend.Page{}, dherrors.FromHTTPClient(dir.PathCrawlRel, err)
	}
	defer resp.Body.Close()

	var solr dataoneSolrResponse
	if err := json.NewDecoder(resp.Body).Decode(&solr); err != nil {
		return backend.Page{}, dherrors.Parse(dir.PathCrawlRel, err)
	}

	var out []entry.Entry
	for _, d := range solr.Response.Docs {
		if d.Identifier == b.pid {
			continue // the resource map object itself, not a data file
		}
		name := d.FileName
		if name == "" {
			name = sanitizeIdentifier(d.Identifier)
		}
		clean, err := entry.ValidatePath(name)
		if err != nil {
			continue
		}

		var checksums []entry.Checksum
		if d.Checksum != "" {
			alg := entry.NormalizeAlgorithm(d.ChecksumAlgorithm)
			if alg == "" {
				alg = entry.SHA256
			}
			checksums = append(checksums, entry.Checksum{Algorithm: alg, Hex: strings.ToLower(d.Checksum)})
		}
		var size *int64
		if d.Size > 0 {
			s := d.Size
			size = &s
		}
		fe, ferr := entry.NewFileEntry(clean, b.rootURL, b.objectURL(d.Identifier), size, checksums, d.FormatID)
		if ferr != nil {
			continue
		}
		out = append(out, entry.Entry{File: fe})
	}
	return backend.Page{Entries: out}, nil
}

// sanitizeIdentifier turns a DataONE PID (often containing ':', '/', or
// URN-style characters) into a usable file name when the record carries
// no separate fileName.
func sanitizeIdentifier(pid string) string {
	repl := strings.NewReplacer(":", "_", "/", "_", "\\", "_")
	return repl.Replace(pid)
}
