// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package download implements the bounded-concurrency consumer of a crawl
// stream that writes each FileEntry to disk, fusing HTTP body reception,
// hashing, and the disk write into one pass.
//
// Grounded directly on pkg/hfdownloader/downloader.go's Download/
// downloadSingle trio: a chan struct{} semaphore sized Settings.Limit (the
// teacher's MaxActiveDownloads), a ".part" sibling file with an atomic
// rename on success, and os.MkdirAll for parent directories. Multipart/
// range-resumed downloads (the teacher's downloadMultipart) are not carried
// over: arbitrary resume of a partially downloaded file is an explicit
// non-goal.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/eosc-data/datahugger-go/dherrors"
	"github.com/eosc-data/datahugger-go/entry"
	"github.com/eosc-data/datahugger-go/internal/backoff"
	"github.com/eosc-data/datahugger-go/internal/hashpipe"
	"github.com/eosc-data/datahugger-go/internal/httpclient"
	"github.com/eosc-data/datahugger-go/internal/progress"
)

// Verify selects how a completed file is validated against what the
// backend declared.
type Verify string

const (
	// VerifySize accepts size-only matching when no stronger checksum was
	// declared (§9, Open Question 2); this is the default.
	VerifySize Verify = "size"
	// VerifyChecksum requires every declared entry.Checksum to match.
	VerifyChecksum Verify = "checksum"
)

// Settings configures one DownloadWithValidation run.
type Settings struct {
	DstDir string
	Limit  int
	Verify Verify
	Policy backoff.Policy
	Logger *slog.Logger

	// FileHeaders supplies any extra per-file request headers (e.g. a
	// Dryad bearer token), mirroring backend.Backend.FileHeaders.
	FileHeaders func(fileURL string) map[string]string

	// Progress receives file_start/file_progress/file_done/retry/error
	// events as the engine runs, feeding the CLI's JSON-lines renderer and
	// the live TUI (SPEC_FULL.md Component L). May be nil.
	Progress progress.Func
}

func (s *Settings) fillDefaults() {
	if s.Limit <= 0 {
		s.Limit = 4
	}
	if s.Verify == "" {
		s.Verify = VerifySize
	}
	if s.Policy == (backoff.Policy{}) {
		s.Policy = backoff.DefaultDownloadPolicy()
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.FileHeaders == nil {
		s.FileHeaders = func(string) map[string]string { return nil }
	}
	if s.Progress == nil {
		s.Progress = func(progress.Event) {}
	}
}

// Engine writes FileEntry values it is given to Settings.DstDir.
type Engine struct {
	Pool     *httpclient.Pool
	Settings Settings
}

// New returns an Engine with defaulted Settings.
func New(pool *httpclient.Pool, settings Settings) *Engine {
	settings.fillDefaults()
	return &Engine{Pool: pool, Settings: settings}
}

// Run downloads every FileEntry received from files, bounded by
// Settings.Limit concurrent transfers. It returns the first fatal error (if
// any); best-effort, it also attempts every other in-flight file before
// returning when ctx is not yet cancelled.
func (e *Engine) Run(ctx context.Context, files <-chan entry.FileEntry) error {
	sem := make(chan struct{}, e.Settings.Limit)
	var wg sync.WaitGroup
	errCh := make(chan error, 1)
	var once sync.Once

	reportErr := func(err error) {
		once.Do(func() { errCh <- err })
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case fe, ok := <-files:
			if !ok {
				break loop
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				break loop
			}
			wg.Add(1)
			go func(fe entry.FileEntry) {
				defer wg.Done()
				defer func() { <-sem }()
				if err := e.downloadOne(ctx, fe); err != nil {
					e.Settings.Logger.Error("download failed", "path", fe.PathCrawlRel, "error", err)
					reportErr(err)
				}
			}(fe)
		}
	}
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
	}
	return ctx.Err()
}

// downloadOne materializes one file, skipping it if a local file already
// satisfies Settings.Verify (ported from the teacher's shouldSkipLocal).
func (e *Engine) downloadOne(ctx context.Context, fe entry.FileEntry) error {
	dst, err := e.resolvePath(fe.PathCrawlRel)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return dherrors.IO(fe.PathCrawlRel, err)
	}

	skip, err := e.shouldSkipLocal(fe, dst)
	if err != nil {
		return err
	}
	if skip {
		e.Settings.Progress(progress.Event{Event: "file_done", Path: fe.PathCrawlRel, Message: "already present"})
		return nil
	}

	e.Settings.Progress(progress.Event{Event: "file_start", Path: fe.PathCrawlRel, Total: sizeOrZero(fe.Size)})

	if err := e.downloadWithRetry(ctx, fe, dst); err != nil {
		e.Settings.Progress(progress.Event{Event: "error", Path: fe.PathCrawlRel, Message: err.Error()})
		return err
	}
	if err := e.verify(fe, dst); err != nil {
		e.Settings.Progress(progress.Event{Event: "error", Path: fe.PathCrawlRel, Message: err.Error()})
		return err
	}
	e.Settings.Progress(progress.Event{Event: "file_done", Path: fe.PathCrawlRel, Total: sizeOrZero(fe.Size)})
	return nil
}

func sizeOrZero(size *int64) int64 {
	if size == nil {
		return 0
	}
	return *size
}

// resolvePath joins Settings.DstDir with the crawl-relative path, rejecting
// any result that escapes DstDir (Security(path_escape), new relative to
// the teacher: single-repo HF paths are trusted, multi-backend paths are
// not) and introducing OS path separators — the only place that happens
// (§9, Open Question 3).
func (e *Engine) resolvePath(pathCrawlRel string) (string, error) {
	rel := filepath.FromSlash(pathCrawlRel)
	joined := filepath.Join(e.Settings.DstDir, rel)
	base, err := filepath.Abs(e.Settings.DstDir)
	if err != nil {
		return "", dherrors.IO(pathCrawlRel, err)
	}
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", dherrors.IO(pathCrawlRel, err)
	}
	if abs != base && !strings.HasPrefix(abs, base+string(filepath.Separator)) {
		return "", dherrors.Security(pathCrawlRel)
	}
	return abs, nil
}

func (e *Engine) shouldSkipLocal(fe entry.FileEntry, dst string) (bool, error) {
	fi, err := os.Stat(dst)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, dherrors.IO(fe.PathCrawlRel, err)
	}
	if fe.Size == nil {
		return false, nil
	}
	return fi.Size() == *fe.Size, nil
}

func (e *Engine) downloadWithRetry(ctx context.Context, fe entry.FileEntry, dst string) error {
	seq := e.Settings.Policy.New()
	var lastErr error
	for attempt := 0; attempt < e.Settings.Policy.MaxAttempts; attempt++ {
		err := e.downloadOnce(ctx, fe, dst)
		if err == nil {
			return nil
		}
		lastErr = err
		if !dherrors.Retryable(err) {
			return err
		}
		if attempt == e.Settings.Policy.MaxAttempts-1 {
			break
		}
		e.Settings.Progress(progress.Event{Event: "retry", Path: fe.PathCrawlRel, Attempt: attempt + 1, Message: err.Error()})
		if !backoff.Sleep(ctx, seq.Next()) {
			return dherrors.Cancelled()
		}
	}
	return lastErr
}

// downloadOnce streams the HTTP body straight through a hashpipe.Pipe into
// a ".part" sibling file, then renames it onto dst — no intermediate
// buffering of the whole file and no post-hoc re-read (§8).
func (e *Engine) downloadOnce(ctx context.Context, fe entry.FileEntry, dst string) error {
	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return dherrors.IO(fe.PathCrawlRel, err)
	}

	headers := e.Settings.FileHeaders(fe.DownloadURL)
	resp, err := e.Pool.Do(ctx, "GET", fe.DownloadURL, headers)
	if err != nil {
		out.Close()
		return dherrors.FromHTTPClient(fe.PathCrawlRel, err)
	}
	defer resp.Body.Close()

	algorithms := hashpipe.AlgorithmsFor(fe.Checksums)
	pipe := hashpipe.New(out, algorithms)

	body := progress.NewReader(resp.Body, sizeOrZero(fe.Size), fe.PathCrawlRel, e.Settings.Progress)
	_, copyErr := io.Copy(pipe, body)
	closeErr := out.Close()
	if copyErr != nil {
		return dherrors.IO(fe.PathCrawlRel, copyErr)
	}
	if closeErr != nil {
		return dherrors.IO(fe.PathCrawlRel, closeErr)
	}

	digests := pipe.Finalize()
	for _, c := range fe.Checksums {
		got, ok := digests[c.Algorithm]
		if ok && !strings.EqualFold(got, c.Hex) {
			os.Remove(tmp)
			return dherrors.ChecksumMismatch(fe.PathCrawlRel, string(c.Algorithm), c.Hex, got)
		}
	}

	if err := os.Rename(tmp, dst); err != nil {
		return dherrors.IO(fe.PathCrawlRel, err)
	}
	return nil
}

// verify applies Settings.Verify after the streaming hash check in
// downloadOnce has already rejected any checksum mismatch: VerifySize only
// re-confirms the final file size when no checksum was available to check
// during the copy (§9, Open Question 2).
func (e *Engine) verify(fe entry.FileEntry, dst string) error {
	if e.Settings.Verify != VerifySize || fe.Size == nil {
		return nil
	}
	if len(fe.Checksums) > 0 {
		return nil // stronger check already ran in downloadOnce
	}
	fi, err := os.Stat(dst)
	if err != nil {
		return dherrors.IO(fe.PathCrawlRel, err)
	}
	if fi.Size() != *fe.Size {
		return fmt.Errorf("size mismatch for %s: want %d, got %d", fe.PathCrawlRel, *fe.Size, fi.Size())
	}
	return nil
}
