package flowerr

import (
	"errors"
	"io"
	"testing"
)

func TestNewIs(t *testing.T) {
	err := New(BadMagic, "bad magic")
	if !Is(err, BadMagic) {
		t.Fatalf("expected Is(err, BadMagic) to be true")
	}
	if Is(err, BadVersion) {
		t.Fatalf("expected Is(err, BadVersion) to be false")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(Args, "bad value %d", 42)
	if err.Error() == "" {
		t.Fatalf("expected a non-empty message")
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected errors.As to unwrap to *Error")
	}
	if e.Kind != Args {
		t.Fatalf("got kind %v, want Args", e.Kind)
	}
}

func TestWrapFirstErrorWins(t *testing.T) {
	inner := New(ShortRead, "short read")
	wrapped := Wrap(inner, IO, "channel read failed")
	if !Is(wrapped, ShortRead) {
		t.Fatalf("expected the original ShortRead kind to survive wrapping")
	}
	if Is(wrapped, IO) {
		t.Fatalf("did not expect the outer IO kind to take over")
	}
}

func TestWrapPlainError(t *testing.T) {
	wrapped := Wrap(io.EOF, IO, "read failed")
	if !Is(wrapped, IO) {
		t.Fatalf("expected a plain error to be wrapped as IO")
	}
	if !errors.Is(wrapped, io.EOF) {
		t.Fatalf("expected Unwrap chain to reach io.EOF")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, IO, "no-op") != nil {
		t.Fatalf("Wrap(nil, ...) should return nil")
	}
}

func TestKindString(t *testing.T) {
	if CorruptTree.String() != "CORRUPT_TREE" {
		t.Fatalf("got %q, want CORRUPT_TREE", CorruptTree.String())
	}
	if Kind(255).String() != "UNKNOWN" {
		t.Fatalf("expected an out-of-range kind to stringify as UNKNOWN")
	}
}
