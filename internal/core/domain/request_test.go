package domain

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateRequestID(t *testing.T) {
	id, err := GenerateRequestID()
	if err != nil {
		t.Fatalf("GenerateRequestID() error = %v", err)
	}

	if !strings.HasPrefix(id, RequestIDPrefix) {
		t.Errorf("id %q should start with %q", id, RequestIDPrefix)
	}
	if len(id) != 30 {
		t.Errorf("len(id) = %d, want 30", len(id))
	}
	if id != strings.ToLower(id) {
		t.Errorf("id %q should be lowercase", id)
	}
	if !IsValidRequestID(id) {
		t.Errorf("IsValidRequestID(%q) = false", id)
	}
}

func TestGenerateRequestID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := GenerateRequestID()
		if err != nil {
			t.Fatalf("GenerateRequestID() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestIsValidRequestID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid", "sig-01arz3ndektsv4rrffq69g5fav", true},
		{"uppercase", "SIG-01ARZ3NDEKTSV4RRFFQ69G5FAV", true},
		{"wrong prefix", "req-01arz3ndektsv4rrffq69g5fav", false},
		{"too short", "sig-01arz3nd", false},
		{"invalid ulid chars", "sig-01arz3ndektsv4rrffq69g5fa!", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidRequestID(tt.id); got != tt.want {
				t.Errorf("IsValidRequestID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestRequestTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id, err := GenerateRequestID()
	if err != nil {
		t.Fatalf("GenerateRequestID() error = %v", err)
	}
	after := time.Now().Add(time.Second)

	ts := RequestTime(id)
	if ts.Before(before) || ts.After(after) {
		t.Errorf("RequestTime() = %v, want between %v and %v", ts, before, after)
	}

	if !RequestTime("garbage").IsZero() {
		t.Error("RequestTime of invalid id should be zero")
	}
}
