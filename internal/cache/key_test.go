package cache

import (
	"strings"
	"testing"
)

// TestKeyDeterminism verifies that identical logical calls produce
// identical keys, regardless of the map iteration order Go happens to
// use for the keyword arguments.
func TestKeyDeterminism(t *testing.T) {
	args := []any{"explain photosynthesis", 0.7}
	kwargs := map[string]any{"max_tokens": 512, "user": "u-42", "mode": "hybrid"}

	first := Key("ai_response", args, kwargs)
	for i := 0; i < 100; i++ {
		if k := Key("ai_response", args, kwargs); k != first {
			t.Fatalf("iteration %d: key changed: %q vs %q", i, k, first)
		}
	}
}

// TestKeyFixedLength verifies keys are prefix + ":" + a fixed-length
// digest.
func TestKeyFixedLength(t *testing.T) {
	short := Key("p", []any{"x"}, nil)
	long := Key("p", []any{strings.Repeat("x", 1<<16)}, nil)

	if len(short) != len(long) {
		t.Fatalf("digest length must not depend on input size: %d vs %d", len(short), len(long))
	}
	if !strings.HasPrefix(short, "p:") {
		t.Fatalf("expected namespace prefix, got %q", short)
	}
	if got := len(short) - len("p:"); got != keyDigestLen {
		t.Fatalf("expected %d digest chars, got %d", keyDigestLen, got)
	}
}

// TestKeySensitivity verifies that changing any single argument changes
// the key.
func TestKeySensitivity(t *testing.T) {
	base := Key("db_query", []any{"profile", 1}, map[string]any{"include": "notes"})

	variants := []string{
		Key("db_query", []any{"profile", 2}, map[string]any{"include": "notes"}),
		Key("db_query", []any{"profiles", 1}, map[string]any{"include": "notes"}),
		Key("db_query", []any{"profile", 1}, map[string]any{"include": "cards"}),
		Key("db_query", []any{"profile", 1}, nil),
		Key("db_queries", []any{"profile", 1}, map[string]any{"include": "notes"}),
		// Floats participate at full precision; nearby values must not
		// round onto one key.
		Key("db_query", []any{"profile", 1}, map[string]any{"include": "notes", "t": 0.701}),
		Key("db_query", []any{"profile", 1}, map[string]any{"include": "notes", "t": 0.699}),
	}

	seen := map[string]bool{base: true}
	for i, v := range variants {
		if seen[v] {
			t.Fatalf("variant %d collided with a previous key: %q", i, v)
		}
		seen[v] = true
	}
}

// TestKeyPrefixSeparatesNamespaces verifies the same arguments under two
// prefixes never share a key.
func TestKeyPrefixSeparatesNamespaces(t *testing.T) {
	a := Key("embedding", []any{"hello"}, nil)
	b := Key("ai_response", []any{"hello"}, nil)
	if a == b {
		t.Fatalf("namespaces must not collide: %q", a)
	}
}
