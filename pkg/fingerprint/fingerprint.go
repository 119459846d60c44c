// Package fingerprint hashes canonical event content so unchanged events can be skipped
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// VolatileFields are excluded from canonical event fingerprints: they change on every
// scrape without the listing itself changing
var VolatileFields = []string{"scraped_at", "last_updated", "fingerprint"}

// Generate creates a deterministic fingerprint for a JSON object: the SHA-256 of its
// canonical form with sorted keys
func Generate(data map[string]any) string {
	return GenerateWithExclusions(data, nil)
}

// GenerateWithExclusions creates a fingerprint excluding the given dot-notation paths
// (e.g. "scraped_at", "venue.suburb"). Excluding a parent excludes all of its children.
func GenerateWithExclusions(data map[string]any, exclude map[string]bool) string {
	var b strings.Builder
	canonicalize(&b, data, exclude, "")
	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// GenerateFromStruct fingerprints any JSON-encodable value, excluding the named fields
func GenerateFromStruct(v any, exclude ...string) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return GenerateFromJSON(raw, exclude...)
}

// GenerateFromJSON fingerprints a raw JSON object, excluding the named fields
func GenerateFromJSON(raw []byte, exclude ...string) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}
	return GenerateWithExclusions(m, toSet(exclude)), nil
}

// HasChanged compares two fingerprints to detect changes
func HasChanged(oldFingerprint, newFingerprint string) bool {
	return oldFingerprint != newFingerprint
}

func canonicalize(b *strings.Builder, data any, exclude map[string]bool, path string) {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		first := true
		for _, k := range keys {
			fieldPath := k
			if path != "" {
				fieldPath = path + "." + k
			}
			if excluded(fieldPath, exclude) {
				continue
			}
			if !first {
				b.WriteByte(',')
			}
			first = false
			key, _ := json.Marshal(k)
			b.Write(key)
			b.WriteByte(':')
			canonicalize(b, v[k], exclude, fieldPath)
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			// Array elements share the array's path
			canonicalize(b, item, exclude, path)
		}
		b.WriteByte(']')
	default:
		raw, _ := json.Marshal(v)
		b.Write(raw)
	}
}

func excluded(path string, exclude map[string]bool) bool {
	if len(exclude) == 0 {
		return false
	}
	if exclude[path] {
		return true
	}
	for prefix := range exclude {
		if strings.HasPrefix(path, prefix+".") {
			return true
		}
	}
	return false
}

func toSet(fields []string) map[string]bool {
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
