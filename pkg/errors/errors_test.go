package errors

import (
	"fmt"
	"io"
	"testing"
)

func TestCodeOfWrapped(t *testing.T) {
	base := Backend(CodeBackendRequest, "select failed", io.ErrUnexpectedEOF)
	wrapped := fmt.Errorf("performing action: %w", base)

	if got := CodeOf(wrapped); got != CodeBackendRequest {
		t.Fatalf("expected code %d, got %d", CodeBackendRequest, got)
	}
	if got := KindOf(wrapped); got != KindBackend {
		t.Fatalf("expected kind %q, got %q", KindBackend, got)
	}
	if !Is(wrapped, io.ErrUnexpectedEOF) {
		t.Fatal("expected cause to be reachable through the chain")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	a := Contract(CodeDetectorResult, "detector A must return a list")
	b := Contract(CodeDetectorResult, "detector B must return a list")
	c := Contract(CodeDetectorCapability, "not a detector")

	if !Is(a, b) {
		t.Error("errors with the same code should match")
	}
	if Is(a, c) {
		t.Error("errors with different codes should not match")
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(fmt.Errorf("plain")); got != 0 {
		t.Fatalf("expected 0 for uncoded error, got %d", got)
	}
	if got := CodeOf(nil); got != 0 {
		t.Fatalf("expected 0 for nil, got %d", got)
	}
}

func TestErrorMessage(t *testing.T) {
	err := Connection(CodeNoConnection, "no connection for page 3", nil)
	if got, want := err.Error(), "[1400000001] no connection for page 3"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	err = Template(CodeTemplateLoad, "loading results.html", io.EOF)
	if got, want := err.Error(), "[1400000201] loading results.html: EOF"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
