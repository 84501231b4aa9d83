// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package datahugger is the public facade wiring the backend registry, the
// crawl engine, the download engine, and the dual iterator into the API of
// SPEC_FULL.md §6: Resolve a URL once, then either stream its entries or
// download the whole tree with validation.
package datahugger

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/eosc-data/datahugger-go/backend"
	"github.com/eosc-data/datahugger-go/crawl"
	"github.com/eosc-data/datahugger-go/dherrors"
	"github.com/eosc-data/datahugger-go/doi"
	"github.com/eosc-data/datahugger-go/download"
	"github.com/eosc-data/datahugger-go/entry"
	"github.com/eosc-data/datahugger-go/internal/httpclient"
	"github.com/eosc-data/datahugger-go/internal/progress"
	"github.com/eosc-data/datahugger-go/iterator"

	_ "github.com/eosc-data/datahugger-go/backend/arxiv"
	_ "github.com/eosc-data/datahugger-go/backend/dataone"
	_ "github.com/eosc-data/datahugger-go/backend/dataverse"
	_ "github.com/eosc-data/datahugger-go/backend/dryad"
	_ "github.com/eosc-data/datahugger-go/backend/github"
	_ "github.com/eosc-data/datahugger-go/backend/hal"
	_ "github.com/eosc-data/datahugger-go/backend/huggingface"
	_ "github.com/eosc-data/datahugger-go/backend/osf"
	_ "github.com/eosc-data/datahugger-go/backend/zenodo"
)

// Error is the single error type returned across this package's boundary,
// grounded on pkg/hfdownloader/errors.go's APIError/DownloadError/
// VerificationError trio but generalized into one Kind enum with a uniform
// Retryable() method (§7).
type Error = dherrors.Error

// Kind re-exports the error taxonomy so callers need not import dherrors.
type Kind = dherrors.Kind

const (
	KindUnsupported      = dherrors.KindUnsupported
	KindNetworkTransient = dherrors.KindNetworkTransient
	KindNetworkFatal     = dherrors.KindNetworkFatal
	KindTimeout          = dherrors.KindTimeout
	KindHTTP             = dherrors.KindHTTP
	KindParse            = dherrors.KindParse
	KindChecksumMismatch = dherrors.KindChecksumMismatch
	KindSecurity         = dherrors.KindSecurity
	KindIO               = dherrors.KindIO
	KindCancelled        = dherrors.KindCancelled
)

// Settings configures Resolve and the engines a Dataset builds from it.
type Settings struct {
	// Token is the bearer/API token passed to the resolved backend's
	// factory; when Token is empty, the GitHub, Dryad and Hugging Face
	// backends fall back to GITHUB_TOKEN, DRYAD_API_KEY and HF_TOKEN
	// respectively. Other backends read no environment variable.
	Token string

	HTTPConfig httpclient.Config

	// CrawlConcurrency bounds the crawl engine's worker pool (default 8).
	CrawlConcurrency int

	// DownloadLimit bounds concurrent file transfers (default 4).
	DownloadLimit int

	// Verify selects download validation strength (default "size").
	Verify download.Verify

	// Progress, when set, receives download-engine events for DownloadWithValidation.
	Progress progress.Func
}

func (s Settings) fillDefaults() Settings {
	if s.CrawlConcurrency <= 0 {
		s.CrawlConcurrency = 8
	}
	if s.DownloadLimit <= 0 {
		s.DownloadLimit = 4
	}
	if s.Verify == "" {
		s.Verify = download.VerifySize
	}
	return s
}

// Dataset is a resolved dataset: one backend instance bound to one root
// URL, sharing the process-wide HTTP client pool. A Dataset outlives any
// stream derived from it; streams hold a read-only reference back to the
// backend, never the reverse, so there is no Dataset <-> stream cycle.
type Dataset struct {
	be       backend.Backend
	pool     *httpclient.Pool
	rootURL  string
	settings Settings
}

// Resolve turns a DOI or landing-page URL into a Dataset. A doi.org host is
// followed to its landing page first; the result is then matched against
// the backend registry.
func Resolve(ctx context.Context, rawURL string, settings Settings) (*Dataset, error) {
	settings = settings.fillDefaults()
	pool := httpclient.New(settings.HTTPConfig)

	target, err := followDOI(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	be, root, err := backend.Global().Resolve(ctx, pool, target, settings.Token)
	if err != nil {
		if _, ok := err.(*backend.ErrUnsupported); ok {
			return nil, dherrors.Unsupported(rawURL)
		}
		return nil, err
	}
	return &Dataset{be: be, pool: pool, rootURL: root, settings: settings}, nil
}

func followDOI(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("datahugger: invalid url %q: %w", rawURL, err)
	}
	if !strings.EqualFold(u.Host, "doi.org") {
		return rawURL, nil
	}
	id := strings.Trim(u.Path, "/")
	r := doi.NewResolver(15 * time.Second)
	return r.Resolve(ctx, id, true)
}

// WithProgress attaches fn as the progress sink for subsequent
// DownloadWithValidation calls and returns d for chaining. Lets a caller
// resolve once, inspect ds.ID()/ds.RootURL() to build a UI header, and only
// then decide which progress.Func to wire in.
func (d *Dataset) WithProgress(fn progress.Func) *Dataset {
	d.settings.Progress = fn
	return d
}

// RootURL returns the canonical URL this Dataset was resolved to.
func (d *Dataset) RootURL() string { return d.rootURL }

// ID returns the backend's short name ("huggingface", "dataverse", ...).
func (d *Dataset) ID() string { return d.be.ID() }

// Crawl returns the full entry stream (files and directories).
func (d *Dataset) Crawl(ctx context.Context) *iterator.Dual[entry.Entry] {
	st := d.crawlEngine().Crawl(ctx)
	ch := make(chan iterator.Item[entry.Entry])
	go func() {
		defer close(ch)
		for r := range st.Chan() {
			select {
			case ch <- iterator.Item[entry.Entry]{Value: r.Entry, Err: r.Err}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return iterator.New[entry.Entry](ch)
}

// CrawlFiles returns only the FileEntry values of the stream, dropping
// DirEntry nodes.
func (d *Dataset) CrawlFiles(ctx context.Context) *iterator.Dual[entry.FileEntry] {
	st := d.crawlEngine().Crawl(ctx)
	ch := make(chan iterator.Item[entry.FileEntry])
	go func() {
		defer close(ch)
		for r := range st.Chan() {
			if r.Err != nil {
				select {
				case ch <- iterator.Item[entry.FileEntry]{Err: r.Err}:
				case <-ctx.Done():
				}
				return
			}
			if !r.Entry.IsFile() {
				continue
			}
			select {
			case ch <- iterator.Item[entry.FileEntry]{Value: *r.Entry.File}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return iterator.New[entry.FileEntry](ch)
}

// DownloadWithValidation crawls the dataset and downloads every file to
// dstDir, validating each one per Settings.Verify. limit overrides
// Settings.DownloadLimit when positive.
func (d *Dataset) DownloadWithValidation(ctx context.Context, dstDir string, limit int) error {
	if limit <= 0 {
		limit = d.settings.DownloadLimit
	}

	st := d.crawlEngine().Crawl(ctx)
	files := make(chan entry.FileEntry)
	crawlErrCh := make(chan error, 1)

	go func() {
		defer close(files)
		for r := range st.Chan() {
			if r.Err != nil {
				select {
				case crawlErrCh <- r.Err:
				default:
				}
				return
			}
			if !r.Entry.IsFile() {
				continue
			}
			select {
			case files <- *r.Entry.File:
			case <-ctx.Done():
				return
			}
		}
	}()

	dl := download.New(d.pool, download.Settings{
		DstDir:      dstDir,
		Limit:       limit,
		Verify:      d.settings.Verify,
		FileHeaders: d.be.FileHeaders,
		Progress:    d.settings.Progress,
	})
	downloadErr := dl.Run(ctx, files)

	select {
	case crawlErr := <-crawlErrCh:
		if crawlErr != nil {
			return crawlErr
		}
	default:
	}
	return downloadErr
}

func (d *Dataset) crawlEngine() *crawl.Engine {
	return crawl.New(d.be, d.settings.CrawlConcurrency)
}
