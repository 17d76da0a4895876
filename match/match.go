// Package match evaluates predicate sets against jobs and tubes.
//
// A predicate set is an Options map from attribute key to Predicate. Keys
// are resolved against a catalog.Set; a key outside the set is a
// programming error and Matches reports it as an InvalidMatchKeyError
// before evaluating anything, whatever the order of the map.
package match

import (
	"sort"

	"github.com/BranchIntl/tubecheck/catalog"
	"github.com/BranchIntl/tubecheck/errors"
)

// Entity is anything exposing named attribute values
type Entity interface {
	Attribute(name string) (any, bool)
}

// Attributes is a plain attribute map usable as an Entity
type Attributes map[string]any

// Attribute implements Entity
func (a Attributes) Attribute(name string) (any, bool) {
	v, ok := a[name]
	return v, ok
}

// Options maps attribute keys to the predicate each must satisfy
type Options map[string]Predicate

type condition struct {
	key  string
	pred Predicate
}

// resolve canonicalizes every key in opts against allowed and returns the
// conditions in key order.
func (opts Options) resolve(allowed catalog.Set) ([]condition, error) {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]condition, 0, len(keys))
	for _, k := range keys {
		name, ok := allowed.Canonical(k)
		if !ok {
			return nil, &errors.InvalidMatchKeyError{Key: k, Allowed: allowed.Names()}
		}
		conds = append(conds, condition{key: name, pred: opts[k]})
	}
	return conds, nil
}

// Validate checks every key in opts against allowed
func (opts Options) Validate(allowed catalog.Set) error {
	_, err := opts.resolve(allowed)
	return err
}

// Matches reports whether every predicate in opts holds for e. An empty
// opts matches anything. Evaluation stops at the first failing predicate.
func Matches(e Entity, opts Options, allowed catalog.Set) (bool, error) {
	if len(opts) == 0 {
		return true, nil
	}

	conds, err := opts.resolve(allowed)
	if err != nil {
		return false, err
	}

	for _, c := range conds {
		actual, _ := e.Attribute(c.key)
		if !c.pred.Match(actual) {
			return false, nil
		}
	}
	return true, nil
}
