// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package osf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/eosc-data/datahugger-go/backend"
	"github.com/eosc-data/datahugger-go/entry"
	"github.com/eosc-data/datahugger-go/internal/httpclient"
)

func TestIsOSFURLPredicate(t *testing.T) {
	u, _ := url.Parse("https://osf.io/abcd/")
	if !isOSFURL(u) {
		t.Error("expected osf.io to match")
	}
	other, _ := url.Parse("https://huggingface.co/foo/bar")
	if isOSFURL(other) {
		t.Error("expected huggingface.co not to match")
	}
}

func TestNodeIDFromPath(t *testing.T) {
	if got := nodeIDFromPath("/abcd/"); got != "abcd" {
		t.Errorf("got %q", got)
	}
	if got := nodeIDFromPath("/abcd/files/osfstorage/"); got != "abcd" {
		t.Errorf("got %q", got)
	}
}

func TestRootListURL(t *testing.T) {
	b := &Backend{nodeID: "abcd"}
	want := "https://api.osf.io/v2/nodes/abcd/files/osfstorage/"
	if got := b.rootListURL(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestListDecodesFilesFoldersAndPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"attributes":{"name":"sub","kind":"folder"},"relationships":{"files":{"links":{"related":{"href":"https://api.osf.io/v2/nodes/abcd/files/osfstorage/sub/"}}}}},
			{"attributes":{"name":"a.csv","kind":"file","size":10,"extra":{"hashes":{"md5":"d41d8cd98f00b204e9800998ecf8427e"}}},"links":{"download":"https://osf.io/download/a.csv"}}
		],"links":{"next":"https://api.osf.io/v2/nodes/abcd/files/osfstorage/?page=2"}}`))
	}))
	defer srv.Close()

	pool := httpclient.New(httpclient.DefaultConfig())
	b := &Backend{pool: pool, nodeID: "abcd", rootURL: "https://osf.io/abcd/"}
	page, err := b.List(context.Background(), backend.DirHandle{APIURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(page.Entries), page.Entries)
	}
	if !page.Entries[0].IsDir() || page.Entries[0].Dir.PathCrawlRel != "sub" {
		t.Errorf("got first entry %+v", page.Entries[0])
	}
	fe := page.Entries[1].File
	if fe.PathCrawlRel != "a.csv" || fe.Size == nil || *fe.Size != 10 {
		t.Errorf("got %+v", fe)
	}
	if len(fe.Checksums) != 1 || fe.Checksums[0].Algorithm != entry.MD5 {
		t.Errorf("got checksums %+v", fe.Checksums)
	}
	if !page.More || page.Next.APIURL == "" {
		t.Errorf("expected pagination to continue, got %+v", page)
	}
}

var _ backend.Backend = (*Backend)(nil)
