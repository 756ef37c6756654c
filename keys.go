package aicache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// DefaultTextHashThreshold is the character count above which text is
// replaced by its hash in cache keys. Short texts stay literal so keys
// remain debuggable.
const DefaultTextHashThreshold = 1000

// hashChunkSize bounds the slices fed to the streaming hasher for large
// texts.
const hashChunkSize = 64 * 1024

// KeyGenerator builds deterministic cache keys from (text, operation,
// options). Two equal inputs always produce the same key; option-map
// ordering never matters.
type KeyGenerator struct {
	// TextHashThreshold is the max text length embedded literally.
	TextHashThreshold int
}

// NewKeyGenerator returns a generator with the given threshold, or the
// default when threshold <= 0.
func NewKeyGenerator(threshold int) *KeyGenerator {
	if threshold <= 0 {
		threshold = DefaultTextHashThreshold
	}
	return &KeyGenerator{TextHashThreshold: threshold}
}

// BuildKey produces the logical cache key
//
//	op:{operation}|txt:{text-or-hash}|opts:{hash16}[|q:{hash16}]
//
// The storage tier prefixes it with the ai_cache namespace, so the full
// remote key is ai_cache:op:...; the prefix is applied exactly once.
// A question option, when present, is hashed into its own segment so Q&A
// requests differ by question alone.
func (g *KeyGenerator) BuildKey(text, operation string, options map[string]any) string {
	var b strings.Builder
	b.WriteString("op:")
	b.WriteString(operation)
	b.WriteString("|txt:")
	b.WriteString(g.textSegment(text))
	b.WriteString("|opts:")

	question, hasQuestion := options["question"]
	b.WriteString(hashOptions(options, hasQuestion))

	if hasQuestion {
		b.WriteString("|q:")
		b.WriteString(shortHash(fmt.Sprint(question)))
	}
	return b.String()
}

// textSegment embeds short text literally and hashes the rest, streaming
// the hash input in bounded chunks.
func (g *KeyGenerator) textSegment(text string) string {
	if len(text) <= g.TextHashThreshold {
		return text
	}

	h := sha256.New()
	for len(text) > 0 {
		n := hashChunkSize
		if n > len(text) {
			n = len(text)
		}
		h.Write([]byte(text[:n]))
		text = text[n:]
	}
	return "hash:" + hex.EncodeToString(h.Sum(nil))
}

// hashOptions serializes options with a stable key order and returns the
// first 16 hex chars of the digest. The question option is excluded; it
// has its own key segment.
func hashOptions(options map[string]any, skipQuestion bool) string {
	if len(options) == 0 || (skipQuestion && len(options) == 1) {
		return shortHash("{}")
	}

	keys := make([]string, 0, len(options))
	for k := range options {
		if skipQuestion && k == "question" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.Write(stableValue(options[k]))
	}
	b.WriteByte('}')
	return shortHash(b.String())
}

// stableValue renders an option value deterministically. go-json sorts
// nested map keys via SortMapKeys-compatible marshaling of the normalized
// form below.
func stableValue(v any) []byte {
	switch val := v.(type) {
	case string:
		return []byte(val)
	case nil:
		return []byte("null")
	default:
		data, err := json.Marshal(normalize(val))
		if err != nil {
			return []byte(fmt.Sprint(val))
		}
		return data
	}
}

// normalize rewrites nested maps into key-sorted slices so marshaling is
// order-independent.
func normalize(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([][2]any, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]any{k, normalize(m[k])})
	}
	return pairs
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}
