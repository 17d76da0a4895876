package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BranchIntl/tubecheck/catalog"
	"github.com/BranchIntl/tubecheck/core"
	"github.com/BranchIntl/tubecheck/errors"
)

// DialOptions carries the connection settings shared by every member of a pool
type DialOptions struct {
	Timeout   time.Duration
	Namespace string
	Queues    []string
}

// DialFunc connects to one pool member
type DialFunc func(ctx context.Context, addr string, opts DialOptions) (core.Member, error)

// FactoryFunc builds a strategy over already connected members
type FactoryFunc func(members []core.Member, options ...core.Option) (core.Strategy, error)

// Kind is a registered strategy type
type Kind struct {
	Name string
	Dial DialFunc
	New  FactoryFunc
}

// Registry is a thread-safe strategy kind registry. Identifiers are
// case-insensitive and accept the symbolic ":name" form.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

// Default is the process-wide registry. Strategies are registered during
// program initialization, before the first Materialize.
var Default = NewRegistry()

// NewRegistry creates a new registry
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]Kind),
	}
}

// Register adds a strategy kind. A later registration under the same
// identifier replaces the earlier one.
func (r *Registry) Register(kind Kind) error {
	id := catalog.Normalize(kind.Name)
	if id == "" {
		return errors.ErrEmptyStrategyName
	}

	if kind.New == nil {
		return errors.ErrNilFactory
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds[id] = kind
	return nil
}

// IsKnown reports whether id resolves to a registered kind
func (r *Registry) IsKnown(id string) bool {
	_, ok := r.lookup(id)
	return ok
}

// Materialize resolves id to its registered kind
func (r *Registry) Materialize(id string) (Kind, error) {
	if kind, ok := r.lookup(id); ok {
		return kind, nil
	}
	return Kind{}, &errors.UnknownStrategyError{Name: id, Known: r.Names()}
}

// List returns a copy of the registered kinds keyed by identifier
func (r *Registry) List() map[string]Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make(map[string]Kind, len(r.kinds))
	for id, kind := range r.kinds {
		kinds[id] = kind
	}

	return kinds
}

// Names returns the registered identifiers, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.kinds))
	for id := range r.kinds {
		names = append(names, id)
	}
	sort.Strings(names)

	return names
}

func (r *Registry) lookup(id string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kind, ok := r.kinds[catalog.Normalize(id)]
	return kind, ok
}

// Register adds a kind to the Default registry
func Register(kind Kind) error {
	return Default.Register(kind)
}

// Materialize resolves id against the Default registry
func Materialize(id string) (Kind, error) {
	return Default.Materialize(id)
}
