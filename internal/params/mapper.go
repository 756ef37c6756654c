// Package params separates raw configuration maps into the generic cache
// parameter group and the AI-specific group, applying aliases and range
// validation before anything reaches a constructor.
package params

import (
	"fmt"
	"sort"
)

// Parameter groups. Aliases write to their target name; unknown keys are
// rejected outright.
var (
	genericParams = map[string]bool{
		"redis_url":                true,
		"default_ttl":              true,
		"enable_l1_cache":          true,
		"l1_cache_size":            true,
		"compression_threshold":    true,
		"compression_level":        true,
		"fail_on_connection_error": true,
		"security_config":          true,
	}

	aiParams = map[string]bool{
		"text_hash_threshold": true,
		"hash_algorithm":      true,
		"text_size_tiers":     true,
		"operation_ttls":      true,
	}

	aliases = map[string]string{
		"memory_cache_size": "l1_cache_size",
	}
)

// Numeric bounds, inclusive.
type bound struct{ min, max int64 }

var ranges = map[string]bound{
	"default_ttl":           {1, 31_536_000},
	"compression_threshold": {0, 1_048_576},
	"compression_level":     {1, 9},
	"text_hash_threshold":   {1, 100_000},
	"l1_cache_size":         {1, 10_000},
}

// Result reports the outcome of a mapping pass.
type Result struct {
	OK              bool
	Generic         map[string]any
	AI              map[string]any
	Errors          []string
	Warnings        []string
	Recommendations []string
}

// Map routes each input key into its group, resolves aliases, and
// validates numeric ranges and cross-field constraints.
func Map(input map[string]any) Result {
	res := Result{
		Generic: make(map[string]any),
		AI:      make(map[string]any),
	}

	// Deterministic error ordering for stable messages.
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := input[key]
		name := key
		if target, ok := aliases[key]; ok {
			if _, dup := input[target]; dup {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("%s is a legacy alias for %s; the explicit value wins", key, target))
				continue
			}
			res.Recommendations = append(res.Recommendations,
				fmt.Sprintf("rename %s to %s", key, target))
			name = target
		}

		switch {
		case genericParams[name]:
			res.Generic[name] = value
		case aiParams[name]:
			res.AI[name] = value
		default:
			res.Errors = append(res.Errors, fmt.Sprintf("unknown parameter %q", key))
			continue
		}

		if b, ok := ranges[name]; ok {
			if n, isNum := asInt64(value); !isNum {
				res.Errors = append(res.Errors, fmt.Sprintf("%s must be an integer", name))
			} else if n < b.min || n > b.max {
				res.Errors = append(res.Errors,
					fmt.Sprintf("%s must be between %d and %d, got %d", name, b.min, b.max, n))
			}
		}
	}

	validateTiers(&res)

	res.OK = len(res.Errors) == 0
	return res
}

// validateTiers checks text size tier monotonicity when tiers are present.
func validateTiers(res *Result) {
	raw, ok := res.AI["text_size_tiers"]
	if !ok {
		return
	}

	tiers, ok := asIntMap(raw)
	if !ok {
		res.Errors = append(res.Errors, "text_size_tiers must map tier names to character counts")
		return
	}

	small, hasSmall := tiers["small"]
	medium, hasMedium := tiers["medium"]
	large, hasLarge := tiers["large"]
	if !hasSmall || !hasMedium || !hasLarge {
		res.Errors = append(res.Errors, "text_size_tiers requires small, medium and large thresholds")
		return
	}
	if !(small < medium && medium < large) {
		res.Errors = append(res.Errors,
			fmt.Sprintf("text_size_tiers must satisfy small < medium < large, got %d/%d/%d", small, medium, large))
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func asIntMap(v any) (map[string]int64, bool) {
	out := make(map[string]int64)
	switch m := v.(type) {
	case map[string]int:
		for k, n := range m {
			out[k] = int64(n)
		}
	case map[string]int64:
		for k, n := range m {
			out[k] = n
		}
	case map[string]any:
		for k, raw := range m {
			n, ok := asInt64(raw)
			if !ok {
				return nil, false
			}
			out[k] = n
		}
	default:
		return nil, false
	}
	return out, true
}
