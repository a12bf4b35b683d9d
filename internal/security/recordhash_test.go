package security

import (
	"strings"
	"testing"
)

func samplePayload() map[string]any {
	return map[string]any{
		"municipality_id":   "muni-1",
		"spend_type":        "OBRA",
		"amount":            "150000.00",
		"currency":          "BOB",
		"description":       "Pavimentado de la avenida principal",
		"expense_date":      "2026-03-15",
		"management_period": "2026-Q1",
		"metadata":          map[string]any{"contract": "LP-2026-014", "items": []any{"cemento", "áridos"}},
	}
}

func TestCanonicalHash_Deterministic(t *testing.T) {
	h1, err := CanonicalHash(samplePayload())
	if err != nil {
		t.Fatalf("CanonicalHash: %v", err)
	}
	h2, err := CanonicalHash(samplePayload())
	if err != nil {
		t.Fatalf("CanonicalHash: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hash not deterministic: %q vs %q", h1, h2)
	}
}

func TestCanonicalHash_Format(t *testing.T) {
	h, err := CanonicalHash(samplePayload())
	if err != nil {
		t.Fatalf("CanonicalHash: %v", err)
	}
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64", len(h))
	}
	if h != strings.ToLower(h) {
		t.Error("hash should be lowercase hex")
	}
	for _, c := range h {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Fatalf("hash contains non-hex rune %q", c)
		}
	}
}

func TestCanonicalHash_KeyOrderIrrelevant(t *testing.T) {
	// Maps iterate in random order; two semantically equal payloads built
	// separately must still hash identically.
	a := map[string]any{"b": "2", "a": "1", "c": map[string]any{"y": 2.0, "x": 1.0}}
	b := map[string]any{"c": map[string]any{"x": 1.0, "y": 2.0}, "a": "1", "b": "2"}
	ha, err := CanonicalHash(a)
	if err != nil {
		t.Fatalf("CanonicalHash: %v", err)
	}
	hb, err := CanonicalHash(b)
	if err != nil {
		t.Fatalf("CanonicalHash: %v", err)
	}
	if ha != hb {
		t.Errorf("key order changed the hash: %q vs %q", ha, hb)
	}
}

func TestCanonicalHash_ValueChangesHash(t *testing.T) {
	base, err := CanonicalHash(samplePayload())
	if err != nil {
		t.Fatalf("CanonicalHash: %v", err)
	}
	tampered := samplePayload()
	tampered["amount"] = "150000.01"
	h, err := CanonicalHash(tampered)
	if err != nil {
		t.Fatalf("CanonicalHash: %v", err)
	}
	if h == base {
		t.Error("changing a value must change the hash")
	}
}

func TestCanonicalHash_TypeDistinction(t *testing.T) {
	// "1" (string) and 1 (number) are different content.
	hs, err := CanonicalHash(map[string]any{"v": "1"})
	if err != nil {
		t.Fatalf("CanonicalHash: %v", err)
	}
	hn, err := CanonicalHash(map[string]any{"v": 1.0})
	if err != nil {
		t.Fatalf("CanonicalHash: %v", err)
	}
	if hs == hn {
		t.Error("string and number with the same text must hash differently")
	}
}

func TestCanonicalHash_ArrayOrderMatters(t *testing.T) {
	h1, err := CanonicalHash(map[string]any{"v": []any{"a", "b"}})
	if err != nil {
		t.Fatalf("CanonicalHash: %v", err)
	}
	h2, err := CanonicalHash(map[string]any{"v": []any{"b", "a"}})
	if err != nil {
		t.Fatalf("CanonicalHash: %v", err)
	}
	if h1 == h2 {
		t.Error("array element order is content and must change the hash")
	}
}

func TestVerifyCanonicalHash(t *testing.T) {
	payload := samplePayload()
	h, err := CanonicalHash(payload)
	if err != nil {
		t.Fatalf("CanonicalHash: %v", err)
	}
	if !VerifyCanonicalHash(payload, h) {
		t.Error("VerifyCanonicalHash should accept the matching digest")
	}
	if VerifyCanonicalHash(payload, strings.Repeat("0", 64)) {
		t.Error("VerifyCanonicalHash should reject a wrong digest")
	}
	payload["description"] = "otro"
	if VerifyCanonicalHash(payload, h) {
		t.Error("VerifyCanonicalHash should reject a tampered payload")
	}
}
