package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// keyDigestLen is the number of hex characters kept from the digest.
// 32 hex chars = 128 bits, far beyond collision range for any realistic
// working set.
const keyDigestLen = 32

// Key derives a deterministic cache key from a namespace prefix, ordered
// positional arguments and named keyword arguments.
//
// The arguments are serialized to canonical JSON (encoding/json emits map
// keys in sorted order) and hashed with SHA-256, so identical logical
// calls always produce identical keys regardless of keyword order, and
// any change to any argument flips the key.
func Key(prefix string, args []any, kwargs map[string]any) string {
	payload := struct {
		Args   []any          `json:"a"`
		Kwargs map[string]any `json:"k,omitempty"`
	}{Args: args, Kwargs: kwargs}

	data, err := json.Marshal(payload)
	if err != nil {
		// Unserializable arguments (channels, funcs) are a programming
		// error; fall back to a fmt fingerprint rather than failing a
		// cache path.
		data = fmt.Appendf(nil, "%v|%v", args, kwargs)
	}

	sum := sha256.Sum256(data)
	return prefix + ":" + hex.EncodeToString(sum[:])[:keyDigestLen]
}
