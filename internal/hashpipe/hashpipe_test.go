// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package hashpipe

import (
	"bytes"
	"io"
	"testing"

	"github.com/eosc-data/datahugger-go/entry"
)

func TestPipeComputesDigests(t *testing.T) {
	var dst bytes.Buffer
	p := New(&dst, []entry.Algorithm{entry.SHA256, entry.MD5})

	if _, err := io.Copy(p, bytes.NewReader([]byte("hi"))); err != nil {
		t.Fatalf("copy: %v", err)
	}
	digests := p.Finalize()

	// sha256("hi")
	wantSHA := "8f434346648f6b96df89dda901c5176b10a6d83961dd3c1ac88b59b2dc327aa4"
	if digests[entry.SHA256] != wantSHA {
		t.Errorf("sha256 = %s, want %s", digests[entry.SHA256], wantSHA)
	}
	if dst.String() != "hi" {
		t.Errorf("dst = %q, want %q", dst.String(), "hi")
	}
}

func TestPipePassThroughWithNoAlgorithms(t *testing.T) {
	var dst bytes.Buffer
	p := New(&dst, nil)
	io.Copy(p, bytes.NewReader([]byte("data")))
	if len(p.Finalize()) != 0 {
		t.Error("expected no digests with zero algorithms")
	}
	if dst.String() != "data" {
		t.Errorf("dst = %q", dst.String())
	}
}

func TestAlgorithmsForDedups(t *testing.T) {
	cs := []entry.Checksum{
		{Algorithm: entry.SHA256, Hex: "a"},
		{Algorithm: entry.MD5, Hex: "b"},
		{Algorithm: entry.SHA256, Hex: "a"},
	}
	got := AlgorithmsFor(cs)
	if len(got) != 2 {
		t.Fatalf("got %d algorithms, want 2: %v", len(got), got)
	}
}
