package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"medialog/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExtraction, "staging", "copy", "short read", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"staging", "copy", "short read"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestNodeStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.Status
	}{
		{name: "nil", err: nil, want: services.StatusIdentified},
		{name: "mismatch", err: services.Wrap(services.ErrIntegrityMismatch, "staging", "verify", "md5 differs", nil), want: services.StatusMismatch},
		{name: "extraction", err: services.Wrap(services.ErrExtraction, "staging", "copy", "", errors.New("io")), want: services.StatusExtractionFailed},
		{name: "other", err: errors.New("unexpected"), want: services.StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.NodeStatus(tc.err); got != tc.want {
				t.Fatalf("NodeStatus(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsEngineLocal(t *testing.T) {
	malformed := services.Wrap(services.ErrMalformedResponse, "fido", "parse", "too few fields", nil)
	if !services.IsEngineLocal(malformed) {
		t.Fatal("expected malformed response to be engine-local")
	}
	timeout := fmt.Errorf("%w: %w", services.ErrEngineIdentify, services.ErrTimeout)
	if !services.IsEngineLocal(timeout) {
		t.Fatal("expected timeout to be engine-local")
	}
	if services.IsEngineLocal(services.Wrap(services.ErrEngineInit, "signature", "load", "", nil)) {
		t.Fatal("expected init error not to be engine-local")
	}
}
