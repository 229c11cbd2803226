package datapipes

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"

	"github.com/neurlang/dataloader/rng"
)

// Constructor builds a pipe on top of src from call arguments.
type Constructor func(src IterDataPipe[any], args ...any) (IterDataPipe[any], error)

// Registry maps functional names to pipe constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a functional form. Names are unique.
func (r *Registry) Register(name string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.ctors[name]; taken {
		return fmt.Errorf("unable to add datapipe function name %s as it is already taken", name)
	}
	r.ctors[name] = ctor
	return nil
}

func (r *Registry) Lookup(name string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.ctors[name]
	return ctor, ok
}

// Names lists the registered functional forms in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in functional forms.
var DefaultRegistry = NewRegistry()

// FunctionalDatapipe registers ctor under name in DefaultRegistry.
func FunctionalDatapipe(name string, ctor Constructor) error {
	return DefaultRegistry.Register(name, ctor)
}

// Pipe chains untyped pipes by functional name.
type Pipe struct {
	src      IterDataPipe[any]
	registry *Registry
}

// From wraps src for functional chaining against DefaultRegistry.
func From(src IterDataPipe[any]) Pipe {
	return Pipe{src: src, registry: DefaultRegistry}
}

// FromRegistry is From with a custom registry.
func FromRegistry(src IterDataPipe[any], r *Registry) Pipe {
	return Pipe{src: src, registry: r}
}

// Call applies the functional form name to p.
func (p Pipe) Call(name string, args ...any) (Pipe, error) {
	ctor, ok := p.registry.Lookup(name)
	if !ok {
		return p, fmt.Errorf("datapipe function %s is not registered", name)
	}
	next, err := ctor(p.src, args...)
	if err != nil {
		return p, fmt.Errorf("%s: %w", name, err)
	}
	return Pipe{src: next, registry: p.registry}, nil
}

// Iter forwards to the wrapped pipe.
func (p Pipe) Iter(ctx context.Context) iter.Seq2[any, error] {
	return p.src.Iter(ctx)
}

func arg[A any](args []any, i int) (A, error) {
	var zero A
	if i >= len(args) {
		return zero, fmt.Errorf("missing argument %d", i)
	}
	v, ok := args[i].(A)
	if !ok {
		return zero, fmt.Errorf("argument %d: got %T, want %T", i, args[i], zero)
	}
	return v, nil
}

func optArg[A any](args []any, i int, def A) (A, error) {
	if i >= len(args) {
		return def, nil
	}
	return arg[A](args, i)
}

func init() {
	builtins := map[string]Constructor{
		"map": func(src IterDataPipe[any], args ...any) (IterDataPipe[any], error) {
			fn, err := arg[func(any) (any, error)](args, 0)
			if err != nil {
				return nil, err
			}
			return Map(src, fn), nil
		},
		"filter": func(src IterDataPipe[any], args ...any) (IterDataPipe[any], error) {
			keep, err := arg[func(any) bool](args, 0)
			if err != nil {
				return nil, err
			}
			return Filter(src, keep), nil
		},
		"batch": func(src IterDataPipe[any], args ...any) (IterDataPipe[any], error) {
			size, err := arg[int](args, 0)
			if err != nil {
				return nil, err
			}
			if size <= 0 {
				return nil, fmt.Errorf("batch size must be positive, got %d", size)
			}
			dropLast, err := optArg(args, 1, false)
			if err != nil {
				return nil, err
			}
			batched := Batch(src, size, dropLast)
			return Map(batched, func(b []any) (any, error) { return b, nil }), nil
		},
		"shuffle": func(src IterDataPipe[any], args ...any) (IterDataPipe[any], error) {
			buffer, err := optArg(args, 0, 10000)
			if err != nil {
				return nil, err
			}
			g, err := optArg[*rng.Generator](args, 1, nil)
			if err != nil {
				return nil, err
			}
			return Shuffle(src, buffer, g), nil
		},
		"sharding_filter": func(src IterDataPipe[any], args ...any) (IterDataPipe[any], error) {
			return ShardingFilter(src), nil
		},
	}
	for name, ctor := range builtins {
		if err := DefaultRegistry.Register(name, ctor); err != nil {
			panic(err)
		}
	}
}
