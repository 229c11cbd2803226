// Package engine holds the runtime state shared by the data loading packages:
// the determinism flag, the base random generator and the logger.
package engine

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/neurlang/dataloader/rng"
)

// Context is the runtime handed to loaders. The determinism flag is an atomic
// so worker goroutines may read it, but nothing pairs a read with a later
// write: scoped toggles from several goroutines race last-writer-wins.
type Context struct {
	deterministic atomic.Bool
	gen           *rng.Generator
	log           *zap.Logger
}

// Option configures a Context.
type Option func(c *Context)

// WithDeterministic sets the initial value of the determinism flag.
func WithDeterministic(mode bool) Option {
	return func(c *Context) {
		c.deterministic.Store(mode)
	}
}

// WithGenerator sets the base generator loaders draw epoch seeds from.
func WithGenerator(g *rng.Generator) Option {
	return func(c *Context) {
		c.gen = g
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Context) {
		c.log = l
	}
}

// New returns a Context with the determinism flag off, the process wide
// generator and a no-op logger unless overridden.
func New(opts ...Option) *Context {
	c := &Context{}
	for _, opt := range opts {
		opt(c)
	}
	if c.gen == nil {
		c.gen = rng.Default()
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

var (
	defaultOnce sync.Once
	defaultCtx  *Context
)

// Default returns the process wide Context.
func Default() *Context {
	defaultOnce.Do(func() {
		defaultCtx = New()
	})
	return defaultCtx
}

// OrDefault returns c, or Default when c is nil.
func OrDefault(c *Context) *Context {
	if c == nil {
		return Default()
	}
	return c
}

func (c *Context) Deterministic() bool {
	return c.deterministic.Load()
}

func (c *Context) SetDeterministic(mode bool) {
	c.deterministic.Store(mode)
}

func (c *Context) Generator() *rng.Generator {
	return c.gen
}

func (c *Context) Logger() *zap.Logger {
	return c.log
}
