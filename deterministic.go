package dataloader

import (
	"github.com/neurlang/dataloader/engine"
	"github.com/neurlang/dataloader/rng"
)

// Generator is the random generator loaders and samplers are seeded with.
type Generator = rng.Generator

// DeterministicToggle holds the determinism flag of a runtime at a given
// value until Restore.
type DeterministicToggle struct {
	rt   *engine.Context
	prev bool
}

// SetDeterministic records the current determinism flag of rt and sets it to
// mode. A nil rt means engine.Default(). Restore the previous value with
// defer:
//
//	defer dataloader.SetDeterministic(rt, true).Restore()
//
// Toggles nest under sequential use. Concurrent toggles on one runtime are not
// coordinated and the last restore wins.
func SetDeterministic(rt *engine.Context, mode bool) *DeterministicToggle {
	rt = engine.OrDefault(rt)
	t := &DeterministicToggle{rt: rt, prev: rt.Deterministic()}
	rt.SetDeterministic(mode)
	return t
}

// Restore puts the flag back to the value seen by SetDeterministic.
func (t *DeterministicToggle) Restore() {
	t.rt.SetDeterministic(t.prev)
}

// Previous reports the value the flag had before the toggle.
func (t *DeterministicToggle) Previous() bool {
	return t.prev
}

// WithDeterministic runs fn with the determinism flag of rt set to mode and
// restores it afterwards, also when fn panics. fn's error is returned as is.
func WithDeterministic(rt *engine.Context, mode bool, fn func() error) error {
	defer SetDeterministic(rt, mode).Restore()
	return fn()
}
