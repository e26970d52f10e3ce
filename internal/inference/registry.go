package inference

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/jonnison/tower-jumps/internal/model"
)

// Registration pairs a method id with the constructor for its strategy.
type Registration struct {
	Method model.Method
	New    Constructor
}

// Registry maps method ids to strategy constructors. It is populated once by
// NewRegistry and read-only afterwards, so it can be shared across goroutines.
type Registry struct {
	ctors map[model.Method]Constructor
}

// NewRegistry validates and indexes the registrations. A zero method id, a
// nil constructor, a duplicate id or a constructor whose strategy reports a
// different method all wrap ErrInvalidRegistration.
func NewRegistry(regs ...Registration) (*Registry, error) {
	r := &Registry{ctors: make(map[model.Method]Constructor, len(regs))}
	for _, reg := range regs {
		if reg.Method == 0 {
			return nil, eris.Wrap(ErrInvalidRegistration, "strategy has no method id")
		}
		if reg.New == nil {
			return nil, eris.Wrapf(ErrInvalidRegistration, "method %d has no constructor", reg.Method)
		}
		if _, dup := r.ctors[reg.Method]; dup {
			return nil, eris.Wrapf(ErrInvalidRegistration, "method %d registered twice", reg.Method)
		}
		s := reg.New()
		if s == nil {
			return nil, eris.Wrapf(ErrInvalidRegistration, "method %d constructor returned nil", reg.Method)
		}
		if s.Method() != reg.Method {
			return nil, eris.Wrapf(ErrInvalidRegistration,
				"method %d constructor builds %q (method %d)", reg.Method, s.Name(), s.Method())
		}
		r.ctors[reg.Method] = reg.New
	}
	return r, nil
}

// MustRegistry is NewRegistry for process start-up: it panics on error.
func MustRegistry(regs ...Registration) *Registry {
	r, err := NewRegistry(regs...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry registers majority vote and clustering.
func DefaultRegistry(opts ClusteringOptions) (*Registry, error) {
	return NewRegistry(
		Registration{Method: model.MethodMajorityVote, New: func() Strategy { return NewMajorityVote() }},
		Registration{Method: model.MethodClustering, New: func() Strategy { return NewClustering(opts) }},
	)
}

// Resolve instantiates the strategy registered for m.
func (r *Registry) Resolve(m model.Method) (Strategy, error) {
	ctor, ok := r.ctors[m]
	if !ok {
		return nil, &UnknownMethodError{Raw: strconv.Itoa(int(m))}
	}
	return ctor(), nil
}

// ResolveString parses a method id as received from a client and resolves it.
func (r *Registry) ResolveString(raw string) (Strategy, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, &UnknownMethodError{Raw: raw}
	}
	ctor, ok := r.ctors[model.Method(n)]
	if !ok {
		return nil, &UnknownMethodError{Raw: raw}
	}
	return ctor(), nil
}

// Methods lists the registered method ids in ascending order.
func (r *Registry) Methods() []model.Method {
	out := make([]model.Method, 0, len(r.ctors))
	for m := range r.ctors {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
