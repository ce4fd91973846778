package util

import (
	"strings"
	"testing"
)

func TestNewIDPrefixAndUniqueness(t *testing.T) {
	first := NewID("thr")
	second := NewID("thr")
	if !strings.HasPrefix(first, "thr_") {
		t.Fatalf("expected thr_ prefix, got %q", first)
	}
	if len(first) != len("thr_")+32 {
		t.Fatalf("unexpected id length %d", len(first))
	}
	if first == second {
		t.Fatal("expected distinct ids")
	}
	if strings.Contains(NewID(""), "_") {
		t.Fatal("expected no separator without prefix")
	}
}
