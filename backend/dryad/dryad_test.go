// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package dryad

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/eosc-data/datahugger-go/backend"
	"github.com/eosc-data/datahugger-go/internal/httpclient"
)

func TestDoiFromPath(t *testing.T) {
	if got := doiFromPath("/stash/dataset/doi:10.5061/dryad.abc123"); got != "doi:10.5061/dryad.abc123" {
		t.Errorf("got %q", got)
	}
}

func TestIsDryadURLPredicate(t *testing.T) {
	u, _ := url.Parse("https://datadryad.org/stash/dataset/doi:10.5061/dryad.abc123")
	if !isDryadURL(u) {
		t.Error("expected datadryad.org to match")
	}
	other, _ := url.Parse("https://zenodo.org/record/1")
	if isDryadURL(other) {
		t.Error("expected zenodo.org not to match")
	}
}

func TestDatasetURL(t *testing.T) {
	b := &Backend{doi: "doi:10.5061/dryad.abc123"}
	want := "https://datadryad.org/api/v2/datasets/doi%3A10.5061%2Fdryad.abc123"
	if got := b.datasetURL(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestListDecodesFilesAndThreadsNextPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"_embedded":{"stash:files":[
			{"path":"data.csv","size":99,"digest":"d41d8cd98f00b204e9800998ecf8427e","_links":{"stash:download":{"href":"/api/v2/files/1/download"}}}
		]},"_links":{"next":{"href":"/api/v2/versions/1/files?page=2"}}}`))
	}))
	defer srv.Close()

	pool := httpclient.New(httpclient.DefaultConfig())
	b := &Backend{pool: pool, doi: "doi:10.5061/dryad.abc123", rootURL: "https://datadryad.org/stash/dataset/doi:10.5061/dryad.abc123"}
	page, err := b.List(context.Background(), backend.DirHandle{APIURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("got %d entries, want 1: %+v", len(page.Entries), page.Entries)
	}
	fe := page.Entries[0].File
	if fe.PathCrawlRel != "data.csv" || fe.DownloadURL != "https://datadryad.org/api/v2/files/1/download" {
		t.Errorf("got %+v", fe)
	}
	if len(fe.Checksums) != 1 || fe.Checksums[0].Algorithm != "md5" {
		t.Errorf("got checksums %+v", fe.Checksums)
	}
	if !page.More || page.Next.APIURL != "https://datadryad.org/api/v2/versions/1/files?page=2" {
		t.Errorf("expected threaded next page, got %+v", page)
	}
}

var _ backend.Backend = (*Backend)(nil)
