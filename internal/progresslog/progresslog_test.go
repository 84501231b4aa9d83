// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package progresslog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/eosc-data/datahugger-go/internal/progress"
)

func TestHandlerWritesOneJSONLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)
	handler := w.Handler()

	handler(progress.Event{Event: "file_start", Path: "a.txt", Total: 10})
	handler(progress.Event{Event: "file_done", Path: "a.txt", Total: 10})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	for _, line := range lines {
		var ev progress.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("line %q did not decode: %v", line, err)
		}
		if ev.Path != "a.txt" {
			t.Errorf("got Path=%q", ev.Path)
		}
	}
}
