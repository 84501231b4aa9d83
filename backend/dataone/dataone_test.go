// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package dataone

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/eosc-data/datahugger-go/backend"
	"github.com/eosc-data/datahugger-go/internal/httpclient"
)

func TestIsDataONEURLPredicate(t *testing.T) {
	u, _ := url.Parse("https://cn.dataone.org/cn/v2/resolve/urn:uuid:abc")
	if !isDataONEURL(u) {
		t.Error("expected cn.dataone.org to match")
	}
	other, _ := url.Parse("https://zenodo.org/record/1")
	if isDataONEURL(other) {
		t.Error("expected zenodo.org not to match")
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	if got := sanitizeIdentifier("urn:uuid:abc/def"); got != "urn_uuid_abc_def" {
		t.Errorf("got %q", got)
	}
}

func TestSolrURLContainsResourceMapQuery(t *testing.T) {
	b := &Backend{cnHost: "cn.dataone.org", pid: "urn:uuid:abc"}
	got := b.solrURL()
	if want := "cn.dataone.org/cn/v2/query/solr/"; !strings.Contains(got, want) {
		t.Errorf("solrURL %s missing %s", got, want)
	}
	u, err := url.Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	if q, want := u.Query().Get("q"), `resourceMap:"urn:uuid:abc"`; q != want {
		t.Errorf("got q=%q, want %q", q, want)
	}
}

func TestListSkipsResourceMapObjectItself(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"docs":[
			{"identifier":"urn:uuid:abc","size":0},
			{"identifier":"urn:uuid:def","fileName":"sample.csv","size":2048,"checksum":"d41d8cd98f00b204e9800998ecf8427e","checksumAlgorithm":"MD5","formatId":"text/csv"}
		]}}`))
	}))
	defer srv.Close()

	pool := httpclient.New(httpclient.DefaultConfig())
	pool.Raw().Transport = srv.Client().Transport

	b := &Backend{pool: pool, cnHost: srv.Listener.Addr().String(), pid: "urn:uuid:abc", rootURL: "https://example.test/resolve/urn:uuid:abc"}
	page, err := b.List(context.Background(), backend.DirHandle{})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("got %d entries, want 1 (resource map object must be skipped): %+v", len(page.Entries), page.Entries)
	}
	fe := page.Entries[0].File
	if fe.PathCrawlRel != "sample.csv" || fe.Size == nil || *fe.Size != 2048 {
		t.Errorf("got %+v", fe)
	}
	if len(fe.Checksums) != 1 || fe.Checksums[0].Algorithm != "md5" {
		t.Errorf("got checksums %+v", fe.Checksums)
	}
}

var _ backend.Backend = (*Backend)(nil)
