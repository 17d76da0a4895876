package core

import (
	"github.com/BranchIntl/tubecheck/catalog"
	"github.com/BranchIntl/tubecheck/match"
)

// stats that stay strings even when they look numeric
var textStats = map[string]bool{
	catalog.TubeName:      true,
	catalog.JobTube:       true,
	catalog.JobState:      true,
	catalog.JobBody:       true,
	catalog.JobConnection: true,
	"file":                true,
}

// ParseStats converts raw protocol stats into typed attributes. Numeric
// values become int64 or float64; names and states stay strings.
func ParseStats(raw map[string]string) match.Attributes {
	if raw == nil {
		return nil
	}
	out := make(match.Attributes, len(raw))
	for k, v := range raw {
		if textStats[k] {
			out[k] = v
			continue
		}
		out[k] = match.ParseValue(v)
	}
	return out
}

// MergeStats folds per-member tube stats into one pool-wide view. Keys whose
// every observed value is numeric are summed. Any other key keeps the first
// non-numeric value observed in pool order.
func MergeStats(stats []match.Attributes) match.Attributes {
	merged := match.Attributes{}
	text := map[string]bool{}

	for _, s := range stats {
		for k, v := range s {
			prev, seen := merged[k]
			switch {
			case text[k]:
				// first non-numeric value wins
			case !match.IsNumber(v):
				merged[k] = v
				text[k] = true
			case !seen:
				merged[k] = v
			default:
				merged[k] = add(prev, v)
			}
		}
	}
	return merged
}

func add(a, b any) any {
	ai, aok := a.(int64)
	bi, bok := b.(int64)
	if aok && bok {
		return ai + bi
	}
	return asFloat(a) + asFloat(b)
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	}
	return 0
}
