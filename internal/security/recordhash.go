package security

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// CanonicalHash returns the hex-encoded SHA-256 digest of the canonical JSON
// form of payload. Canonicalization sorts map keys lexicographically at every
// nesting level and preserves array order, so the digest does not depend on
// key insertion order. Returns an error for values that cannot be serialized
// to JSON (channels, functions, cyclic structures).
func CanonicalHash(payload map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, payload); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// VerifyCanonicalHash recomputes the canonical hash of payload and reports
// whether it equals digest. Returns false for non-serializable payloads.
func VerifyCanonicalHash(payload map[string]any, digest string) bool {
	computed, err := CanonicalHash(payload)
	if err != nil {
		return false
	}
	return computed == digest
}

func encodeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("canonical hash: %w", err)
		}
		buf.Write(b)
		return nil
	}
}
