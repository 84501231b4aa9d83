// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/eosc-data/datahugger-go/backend"
	"github.com/eosc-data/datahugger-go/internal/httpclient"
)

func TestHalIDFromPath(t *testing.T) {
	if got := halIDFromPath("/hal-01234567v2"); got != "hal-01234567v2" {
		t.Errorf("got %q", got)
	}
}

func TestIsHALURLPredicate(t *testing.T) {
	u, _ := url.Parse("https://hal.science/hal-01234567")
	if !isHALURL(u) {
		t.Error("expected hal.science to match")
	}
	other, _ := url.Parse("https://zenodo.org/record/1")
	if isHALURL(other) {
		t.Error("expected zenodo.org not to match")
	}
}

func TestSearchURLContainsHalID(t *testing.T) {
	b := &Backend{halID: "hal-01234567"}
	u, err := url.Parse(b.searchURL())
	if err != nil {
		t.Fatal(err)
	}
	if u.Query().Get("q") != "halId_s:hal-01234567" {
		t.Errorf("got q=%q", u.Query().Get("q"))
	}
}

func TestListExtractsFilesFromFirstDoc(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"docs":[
			{"halId_s":"hal-01234567","files_s":["https://hal.science/hal-01234567/file/paper.pdf"]}
		]}}`))
	}))
	defer srv.Close()

	pool := httpclient.New(httpclient.DefaultConfig())
	b := &Backend{pool: pool, halID: "hal-01234567", rootURL: "https://hal.science/hal-01234567"}
	page, err := b.List(context.Background(), backend.DirHandle{APIURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("got %d entries, want 1: %+v", len(page.Entries), page.Entries)
	}
	fe := page.Entries[0].File
	if fe.PathCrawlRel != "paper.pdf" || fe.Size != nil {
		t.Errorf("got %+v", fe)
	}
}

var _ backend.Backend = (*Backend)(nil)
