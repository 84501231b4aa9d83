// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package progresslog renders a progress.Event stream as JSON-lines,
// generalized from the teacher's jsonProgress closure (in its own
// internal/cli/root.go, not carried into this tree) into a
// standalone writer so both the CLI and any embedding caller can reuse it.
package progresslog

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/eosc-data/datahugger-go/internal/progress"
)

// Writer emits one JSON object per line per progress.Event, synchronized so
// concurrent download workers can share a single Writer safely.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// New wraps w, writing one JSON line per event.
func New(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Handler returns a progress.Func bound to this Writer.
func (l *Writer) Handler() progress.Func {
	return func(ev progress.Event) {
		if ev.Time.IsZero() {
			ev.Time = time.Now()
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		// Encoding errors here are not actionable by the download engine;
		// dropping a malformed line is preferable to aborting the transfer.
		_ = l.enc.Encode(ev)
	}
}
