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
	"go.uber.org/zap"

	"github.com/gtools-go/gtools/pkg/column"
)

// Request bundles one engine invocation's input, per spec.md §6: the
// by-columns, an optional selection mask, and the value/function work
// list for the aggregation stage.
type Request struct {
	By        column.Set
	Mask      *Mask
	ValueCols column.Set
	Funcs     []Func
}

// Mask is the optional row selection ("if"/"in" filtering, spec.md
// §4.4): rows outside the mask never enter the by-key or any
// aggregation. It is applied once, by filtering the columns before
// hash construction.
type Mask struct {
	Selected []bool
}

// GroupResult is the output of one full engine invocation: the group
// count J, the boundaries, the permutation used to read rows in sorted
// order, and per-value-column aggregate results.
type GroupResult struct {
	J       int
	Info    []uint64
	Perm    []uint64
	Fp      *Fingerprint
	Outputs map[string][]Result
}

// Run drives the whole C1->C6 pipeline for one Request: Init -> Hashed
// -> Sorted -> Grouped -> Aggregated -> Done (spec.md §4.7). Any stage
// failure short-circuits straight to Done with an error; no partial
// output is ever returned to the caller (spec.md §7).
func Run(ctx *Context, req *Request) (result *GroupResult, outErr *Error) {
	defer func() {
		ctx.State = StateDone
	}()
	defer recoverInvariant(&outErr)

	by, valueCols, err := applyMask(req)
	if err != nil {
		return nil, err
	}

	fp, err := HashRows(ctx, by)
	if err != nil {
		return nil, err
	}
	if err := ctx.Transition(StateHashed); err != nil {
		return nil, err
	}

	n := by.Len()
	perm := make([]uint64, n)
	for i := range perm {
		perm[i] = uint64(i)
	}
	if err := SortHash(ctx, fp.H1, perm); err != nil {
		return nil, err
	}
	if err := ctx.Transition(StateSorted); err != nil {
		return nil, err
	}

	var h2 []uint64
	if fp.Mode == Hash128Mode {
		h2 = reorderH2(fp.H1, fp.H2, perm)
	}
	info, err := PanelSetup(ctx, fp.H1, h2, perm)
	if err != nil {
		return nil, err
	}
	if err := ctx.Transition(StateGrouped); err != nil {
		return nil, err
	}

	outputs := make(map[string][]Result, len(valueCols))
	for _, vc := range valueCols {
		res, err := Aggregate(ctx, vc, perm, info, req.Funcs)
		if err != nil {
			return nil, err
		}
		outputs[vc.Name] = res
	}
	if err := ctx.Transition(StateAggregated); err != nil {
		return nil, err
	}

	if ctx.Opts.Verbose {
		ctx.Log.Info("run complete",
			zap.Int("groups", len(info)-1),
			zap.String("hashMode", ctx.Stats.HashMode),
			zap.String("sortMode", ctx.Stats.SortMode),
			zap.Int("collisions", ctx.Stats.Collisions))
	}

	return &GroupResult{
		J:       len(info) - 1,
		Info:    info,
		Perm:    perm,
		Fp:      fp,
		Outputs: outputs,
	}, nil
}

// reorderH2 re-applies the sort permutation computed over h1 to h2, so
// the two halves stay row-aligned once h1 is sorted. h1 is already
// sorted by the time this runs; h2 must be gathered through perm.
func reorderH2(h1sorted, h2orig, perm []uint64) []uint64 {
	out := make([]uint64, len(perm))
	for i, p := range perm {
		out[i] = h2orig[p]
	}
	return out
}

// applyMask filters by-columns and value-columns down to the selected
// rows (spec.md §4.4's "if"/"in" filtering), returning fresh columns
// so the caller's originals are untouched.
func applyMask(req *Request) (column.Set, column.Set, *Error) {
	if req.Mask == nil {
		return req.By, req.ValueCols, nil
	}
	n := req.By.Len()
	if len(req.Mask.Selected) != n {
		return nil, nil, newError(CodeUnsupportedSchema, "mask length %d != row count %d", len(req.Mask.Selected), n)
	}
	kept := make([]int, 0, n)
	for i, ok := range req.Mask.Selected {
		if ok {
			kept = append(kept, i)
		}
	}
	return filterSet(req.By, kept), filterSet(req.ValueCols, kept), nil
}

func filterSet(set column.Set, kept []int) column.Set {
	out := make(column.Set, len(set))
	for ci, c := range set {
		nc := &column.Column{Name: c.Name, Kind: c.Kind, Width: c.Width}
		switch c.Kind {
		case column.KindInt64:
			nc.Ints = make([]int64, len(kept))
			for i, k := range kept {
				nc.Ints[i] = c.Ints[k]
			}
		case column.KindFloat64:
			nc.Floats = make([]float64, len(kept))
			for i, k := range kept {
				nc.Floats[i] = c.Floats[k]
			}
		case column.KindString:
			nc.Bytes = make([]byte, len(kept)*c.Width)
			for i, k := range kept {
				copy(nc.Bytes[i*c.Width:(i+1)*c.Width], c.StringAt(k))
			}
		}
		out[ci] = nc
	}
	return out
}
