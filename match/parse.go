package match

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/BranchIntl/tubecheck/errors"
)

// ParseCondition parses the textual conditions accepted on the command line:
//
//	key=value    Equals(ParseValue(value))
//	key=lo..hi   InRange(lo, hi), both bounds numeric
//	key=/re/     Pattern(re)
func ParseCondition(s string) (string, Predicate, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", Predicate{}, fmt.Errorf("%w: %q (want key=value)", errors.ErrInvalidCondition, s)
	}

	if len(value) >= 2 && strings.HasPrefix(value, "/") && strings.HasSuffix(value, "/") {
		re, err := regexp.Compile(value[1 : len(value)-1])
		if err != nil {
			return "", Predicate{}, fmt.Errorf("%w: %q: %v", errors.ErrInvalidCondition, s, err)
		}
		return key, Pattern(re), nil
	}

	if lo, hi, ok := strings.Cut(value, ".."); ok {
		l, lerr := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		h, herr := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if lerr == nil && herr == nil {
			if l > h {
				return "", Predicate{}, fmt.Errorf("%w: %q: empty range", errors.ErrInvalidCondition, s)
			}
			return key, InRange(l, h), nil
		}
	}

	return key, Equals(ParseValue(value)), nil
}

// ParseOptions parses a list of conditions into Options. A repeated key
// keeps the last condition.
func ParseOptions(conds []string) (Options, error) {
	opts := make(Options, len(conds))
	for _, c := range conds {
		key, pred, err := ParseCondition(c)
		if err != nil {
			return nil, err
		}
		opts[key] = pred
	}
	return opts, nil
}
