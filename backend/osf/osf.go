// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package osf implements backend.Backend for the Open Science Framework,
// whose waterbutler file-storage API is a genuine paginated directory tree
// (JSON:API, data[].attributes.kind "file"|"folder", relationships.files
// pointing at a folder's own listing, links.next pointing at the next page
// of the current one), the closest fit among the repositories to
// the teacher's own tree-walking shape in pkg/hfdownloader/client.go.
package osf

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
		Name:      "osf",
		Predicate: isOSFURL,
		New:       newFromURL,
	})
}

func isOSFURL(u *url.URL) bool {
	return strings.EqualFold(u.Host, "osf.io")
}

type osfDoc struct {
	Data  json.RawMessage `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

type osfItem struct {
	Attributes struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
		Size int64  `json:"size"`
		Extra struct {
			Hashes struct {
				MD5    string `json:"md5"`
				SHA256 string `json:"sha256"`
			} `json:"hashes"`
		} `json:"extra"`
	} `json:"attributes"`
	Links struct {
		Download string `json:"download"`
		Move     string `json:"move"`
	} `json:"links"`
	Relationships struct {
		Files struct {
			Links struct {
				Related struct {
					Href string `json:"href"`
				} `json:"related"`
			} `json:"links"`
		} `json:"files"`
	} `json:"relationships"`
}

// Backend talks to one OSF node's waterbutler osfstorage file tree.
type Backend struct {
	pool    *httpclient.Pool
	token   string
	nodeID  string
	rootURL string
}

func newFromURL(ctx context.Context, u *url.URL, pool *httpclient.Pool, token string) (backend.Backend, string, error) {
	id := nodeIDFromPath(u.Path)
	if id == "" {
		return nil, "", fmt.Errorf("osf: could not find node id in %s", u.String())
	}
	b := &Backend{pool: pool, token: token, nodeID: id}
	root, err := b.DeriveRootURL(u.String())
	if err != nil {
		return nil, "", err
	}
	b.rootURL = root
	return b, root, nil
}

func nodeIDFromPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	return parts[0]
}

func (b *Backend) ID() string { return "osf" }

func (b *Backend) DeriveRootURL(rawURL string) (string, error) {
	return fmt.Sprintf("https://osf.io/%s/", b.nodeID), nil
}

func (b *Backend) FileHeaders(fileURL string) map[string]string {
	if b.token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + b.token}
}

func (b *Backend) InitialListing(ctx context.Context) (backend.DirHandle, error) {
	return backend.DirHandle{PathCrawlRel: "", APIURL: b.rootListURL()}, nil
}

func (b *Backend) rootListURL() string {
	return fmt.Sprintf("https://api.osf.io/v2/nodes/%s/files/osfstorage/", b.nodeID)
}

func (b *Backend) List(ctx context.Context, dir backend.DirHandle) (backend.Page, error) {
	apiURL := dir.APIURL
	if apiURL == "" {
		apiURL = b.rootListURL()
	}

	headers := b.FileHeaders(apiURL)
	resp, err := b.pool.Do(ctx, "GET", apiURL, headers)
	if err != nil {
		return backend.Page{}, dherrors.FromHTTPClient(dir.PathCrawlRel, err)
	}
	defer resp.Body.Close()

	var doc osfDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return backend.Page{}, dherrors.Parse(dir.PathCrawlRel, err)
	}
	var items []osfItem
	if err := json.Unmarshal(doc.Data, &items); err != nil {
		return backend.Page{}, dherrors.Parse(dir.PathCrawlRel, err)
	}

	var out []entry.Entry
	for _, it := range items {
		rel, perr := entry.JoinPath(dir.PathCrawlRel, it.Attributes.Name)
		if perr != nil {
			continue
		}
		if it.Attributes.Kind == "folder" {
			de, err := entry.NewDirEntry(rel, b.rootURL, it.Relationships.Files.Links.Related.Href)
			if err != nil {
				continue
			}
			out = append(out, entry.Entry{Dir: de})
			continue
		}

		var checksums []entry.Checksum
		if it.Attributes.Extra.Hashes.SHA256 != "" {
			checksums = append(checksums, entry.Checksum{Algorithm: entry.SHA256, Hex: strings.ToLower(it.Attributes.Extra.Hashes.SHA256)})
		}
		if it.Attributes.Extra.Hashes.MD5 != "" {
			checksums = append(checksums, entry.Checksum{Algorithm: entry.MD5, Hex: strings.ToLower(it.Attributes.Extra.Hashes.MD5)})
		}
		var size *int64
		if it.Attributes.Size > 0 {
			s := it.Attributes.Size
			size = &s
		}
		fe, ferr := entry.NewFileEntry(rel, b.rootURL, it.Links.Download, size, checksums, "")
		if ferr != nil {
			continue
		}
		out = append(out, entry.Entry{File: fe})
	}

	page := backend.Page{Entries: out}
	if doc.Links.Next != "" {
		page.More = true
		page.Next = backend.DirHandle{PathCrawlRel: dir.PathCrawlRel, APIURL: doc.Links.Next}
	}
	return page, nil
}
