// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package zenodo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/eosc-data/datahugger-go/backend"
	"github.com/eosc-data/datahugger-go/internal/httpclient"
)

func TestRecordIDFromPath(t *testing.T) {
	if got := recordIDFromPath("/record/1234567"); got != "1234567" {
		t.Errorf("got %q", got)
	}
	if got := recordIDFromPath("/records/1234567/files/a.csv"); got != "1234567" {
		t.Errorf("got %q", got)
	}
}

func TestIsZenodoURLPredicate(t *testing.T) {
	u, _ := url.Parse("https://zenodo.org/record/1234567")
	if !isZenodoURL(u) {
		t.Error("expected zenodo.org to match")
	}
	other, _ := url.Parse("https://osf.io/abc")
	if isZenodoURL(other) {
		t.Error("expected osf.io not to match")
	}
}

func TestRecordAPIURL(t *testing.T) {
	b := &Backend{apiHost: "zenodo.org", recordID: "1234567"}
	want := "https://zenodo.org/api/records/1234567"
	if got := b.recordAPIURL(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestListParsesChecksumAndSize(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"files":[
			{"key":"data.zip","size":4096,"checksum":"sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855","links":{"self":"https://example.test/files/data.zip"}}
		]}`))
	}))
	defer srv.Close()

	pool := httpclient.New(httpclient.DefaultConfig())
	pool.Raw().Transport = srv.Client().Transport

	b := &Backend{pool: pool, apiHost: srv.Listener.Addr().String(), recordID: "1234567", rootURL: "https://example.test/records/1234567"}
	page, err := b.List(context.Background(), backend.DirHandle{})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("got %d entries, want 1: %+v", len(page.Entries), page.Entries)
	}
	fe := page.Entries[0].File
	if fe.PathCrawlRel != "data.zip" || fe.Size == nil || *fe.Size != 4096 {
		t.Errorf("got %+v", fe)
	}
	if len(fe.Checksums) != 1 || fe.Checksums[0].Algorithm != "sha256" {
		t.Errorf("got checksums %+v", fe.Checksums)
	}
}

var _ backend.Backend = (*Backend)(nil)
