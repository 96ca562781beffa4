// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key derives the lookup key for a set of request parameters. The params
// map is serialized with keys in sorted order, so two logically identical
// requests hash to the same key regardless of how callers assemble the map.
func Key(params map[string]any) string {
	data, err := json.Marshal(params)
	if err != nil {
		// Parameters are plain strings and numbers in practice; fall back
		// to the formatted map so a key is always produced.
		data = []byte(fmt.Sprintf("%v", params))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func marshalValue(v any) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalValue(data []byte, dest any) error {
	return json.Unmarshal(data, dest)
}
