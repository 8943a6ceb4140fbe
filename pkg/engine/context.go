// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"github.com/huandu/go-clone"
	"go.uber.org/zap"

	"github.com/gtools-go/gtools/pkg/util"
)

// State is the engine's invocation state machine: Init -> Hashed ->
// Sorted -> Grouped -> Aggregated -> Done. Transitions are linear; any
// stage failure short-circuits straight to Done with an error.
type State int

const (
	StateInit State = iota
	StateHashed
	StateSorted
	StateGrouped
	StateAggregated
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateHashed:
		return "Hashed"
	case StateSorted:
		return "Sorted"
	case StateGrouped:
		return "Grouped"
	case StateAggregated:
		return "Aggregated"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Options configures one engine invocation: worker count for the
// parallel histogram fan-out, the counting-sort range ceiling, and a
// verbosity flag passed through to the host's logger. Loaded from TOML
// by cmd/gtools, the same way the teacher's cmd/main loads tester.toml.
type Options struct {
	Workers             int  `toml:"workers"`
	CountingSortCeiling int  `toml:"counting_sort_ceiling"`
	Verbose             bool `toml:"verbose"`
}

// DefaultOptions mirrors spec.md §2/§5: a 2^24 counting-sort ceiling and
// up to 4 parallel histogram workers.
func DefaultOptions() Options {
	return Options{
		Workers:             4,
		CountingSortCeiling: 1 << 24,
		Verbose:             false,
	}
}

// Clone returns a deep copy of the Options; NewContext clones its
// argument so concurrent invocations never share mutable option state.
func (o Options) Clone() Options {
	return clone.Clone(o).(Options)
}

// Context owns every scratch buffer and the state machine for one
// engine invocation. No entity outlives the call (spec.md §3
// Lifecycle); nothing here is process-wide mutable state (spec.md §9
// DESIGN NOTES).
type Context struct {
	Opts  Options
	State State
	Log   *zap.Logger
	Stats Stats
	Alloc util.BytesAllocator
}

// Stats accumulates the informational counters the host's logger
// surfaces: 64-bit collisions recovered, the sort mode chosen, and
// which hashing mode ran.
type Stats struct {
	Collisions int
	SortMode   string
	HashMode   string
}

// NewContext builds a fresh per-invocation Context. Passing a nil
// *zap.Logger installs zap.NewNop(), matching how tests run silent.
func NewContext(opts Options, log *zap.Logger) *Context {
	opts = opts.Clone()
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	if opts.CountingSortCeiling <= 0 {
		opts.CountingSortCeiling = DefaultOptions().CountingSortCeiling
	}
	return &Context{
		Opts:  opts,
		State: StateInit,
		Log:   log,
		Alloc: util.GAlloc,
	}
}

// transition moves the state machine forward, panicking on any
// non-linear move.
func (c *Context) transition(to State) {
	util.AssertFunc(to > c.State || to == StateDone)
	c.State = to
}

// Transition is transition's exported, panic-safe form: it converts an
// invariant-violation panic into a *Error rather than crashing the
// caller, per spec.md §7's "Invariant violation (fatal, assertable)".
func (c *Context) Transition(to State) (err *Error) {
	defer recoverInvariant(&err)
	c.transition(to)
	return nil
}
