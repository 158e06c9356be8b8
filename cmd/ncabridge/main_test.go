package main

import (
	"strings"
	"testing"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
)

func TestPrintTokenHash(t *testing.T) {
	var out strings.Builder
	if err := printTokenHash(strings.NewReader("  t0ken \nignored\n"), &out); err != nil {
		t.Fatalf("printTokenHash() error = %v", err)
	}

	h, err := domain.ParseTokenHash(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("ParseTokenHash(%q) error = %v", out.String(), err)
	}
	if !h.Verify("t0ken") {
		t.Error("printed hash does not verify the trimmed token")
	}
}

func TestPrintTokenHash_Empty(t *testing.T) {
	var out strings.Builder
	if err := printTokenHash(strings.NewReader("\n"), &out); err == nil {
		t.Error("printTokenHash() should reject an empty token")
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want nothing", out.String())
	}
}
