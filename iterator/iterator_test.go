// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package iterator

import (
	"context"
	"errors"
	"testing"
)

func TestNextBlockingDrainsValuesThenEnds(t *testing.T) {
	ch := make(chan Item[int], 3)
	ch <- Item[int]{Value: 1}
	ch <- Item[int]{Value: 2}
	close(ch)

	d := New[int](ch)
	v, ok, err := d.NextBlocking()
	if !ok || err != nil || v != 1 {
		t.Fatalf("got %v %v %v", v, ok, err)
	}
	v, ok, err = d.NextBlocking()
	if !ok || err != nil || v != 2 {
		t.Fatalf("got %v %v %v", v, ok, err)
	}
	_, ok, err = d.NextBlocking()
	if ok || err != nil {
		t.Fatalf("expected clean end of stream, got ok=%v err=%v", ok, err)
	}
}

func TestErrorEndsStreamStickily(t *testing.T) {
	wantErr := errors.New("boom")
	ch := make(chan Item[int], 2)
	ch <- Item[int]{Value: 1}
	ch <- Item[int]{Err: wantErr}

	d := New[int](ch)
	_, ok, err := d.NextBlocking()
	if !ok || err != nil {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
	_, ok, err = d.NextBlocking()
	if ok || err != wantErr {
		t.Fatalf("got ok=%v err=%v, want sticky %v", ok, err, wantErr)
	}
	// Second call after the terminal error must not attempt another
	// channel receive (it would block forever on this unclosed channel).
	_, ok, err = d.NextBlocking()
	if ok || err != wantErr {
		t.Fatalf("got ok=%v err=%v on repeat call", ok, err)
	}
}

func TestNextAsyncRespectsContextCancellation(t *testing.T) {
	ch := make(chan Item[int])
	d := New[int](ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := d.NextAsync(ctx)
	if ok || err == nil {
		t.Fatalf("expected cancellation error, got ok=%v err=%v", ok, err)
	}
}
