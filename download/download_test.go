// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/eosc-data/datahugger-go/entry"
	"github.com/eosc-data/datahugger-go/internal/httpclient"
)

func testEngine(t *testing.T, dstDir string) *Engine {
	t.Helper()
	pool := httpclient.New(httpclient.DefaultConfig())
	return New(pool, Settings{
		DstDir: dstDir,
		Limit:  2,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestDownloadOneWritesFileAndVerifiesChecksum(t *testing.T) {
	body := []byte("hello world")
	sum := sha256.Sum256(body)
	hexSum := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	e := testEngine(t, dir)

	size := int64(len(body))
	fe, err := entry.NewFileEntry("sub/file.txt", "root", srv.URL, &size, []entry.Checksum{{Algorithm: entry.SHA256, Hex: hexSum}}, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := e.downloadOne(context.Background(), *fe); err != nil {
		t.Fatalf("downloadOne: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "sub", "file.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(body) {
		t.Errorf("got %q", got)
	}
}

func TestDownloadOneRejectsChecksumMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("actual content"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	e := testEngine(t, dir)

	size := int64(14)
	fe, err := entry.NewFileEntry("bad.txt", "root", srv.URL, &size, []entry.Checksum{{Algorithm: entry.SHA256, Hex: hexOf("wrong content!!")}}, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := e.downloadOne(context.Background(), *fe); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.txt")); !os.IsNotExist(err) {
		t.Error("expected final file not to exist after mismatch")
	}
}

func TestResolvePathRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	e := testEngine(t, dir)
	if _, err := e.resolvePath("../../etc/passwd"); err == nil {
		t.Fatal("expected path escape rejection")
	}
}

func TestShouldSkipLocalOnSizeMatch(t *testing.T) {
	dir := t.TempDir()
	e := testEngine(t, dir)

	dst := filepath.Join(dir, "existing.bin")
	if err := os.WriteFile(dst, []byte("1234567890"), 0o644); err != nil {
		t.Fatal(err)
	}
	size := int64(10)
	fe, err := entry.NewFileEntry("existing.bin", "root", "https://example.test/x", &size, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	skip, err := e.shouldSkipLocal(*fe, dst)
	if err != nil {
		t.Fatal(err)
	}
	if !skip {
		t.Error("expected skip on size match")
	}
}

func hexOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
