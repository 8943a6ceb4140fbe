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

	"github.com/gtools-go/gtools/pkg/util"
)

// faultScopePanel is this package's fault-injection scope (see
// pkg/util/fault_inject.go): tests open it to force resolveCollision
// down an error path without constructing a real allocation failure.
const faultScopePanel = 1

// PanelSetup implements C3 (spec.md §4.3): walk h1 left to right,
// recording a boundary whenever h1[i] != h1[i-1]. Provisional ranges
// with a non-constant h2 are 64-bit hash collisions across distinct
// by-tuples: h2[s..e) is extracted, sorted, and re-spliced into
// perm[s..e) before the range is re-scanned by h2 to produce the real
// boundaries. In BijectMode (h2 == nil) this recovery step never runs,
// since collisions are impossible by construction.
func PanelSetup(ctx *Context, h1 []uint64, h2 []uint64, perm []uint64) ([]uint64, *Error) {
	n := len(h1)
	if n == 0 {
		return []uint64{0}, nil
	}

	info := []uint64{0}
	s := 0
	for i := 1; i <= n; i++ {
		if i == n || h1[i] != h1[i-1] {
			e := i
			if h2 != nil && e-s > 1 && !constantRange(h2, s, e) {
				if err := resolveCollision(ctx, h1, h2, perm, s, e); err != nil {
					return nil, err
				}
				ctx.Stats.Collisions++
				info = appendH2Boundaries(info, h2, s, e)
			} else {
				info = append(info, uint64(e))
			}
			s = e
		}
	}

	if ctx.Opts.Verbose && ctx.Stats.Collisions > 0 {
		ctx.Log.Info("panel-setup collisions recovered", zap.Int("count", ctx.Stats.Collisions))
	}

	return info, nil
}

func constantRange(h2 []uint64, s, e int) bool {
	for i := s + 1; i < e; i++ {
		if h2[i] != h2[s] {
			return false
		}
	}
	return true
}

// resolveCollision re-sorts h2[s:e) via C2 (stably, so ties within an
// h2 value keep their relative order) and splices the resulting local
// permutation into h1/perm so downstream consumers see one consistent
// ordering across the whole array.
func resolveCollision(ctx *Context, h1, h2, perm []uint64, s, e int) *Error {
	if fault := util.Check(faultScopePanel, "resolveCollision"); fault != nil {
		if err := fault.Action(fault.Args); err != nil {
			return newError(CodeInvariantViolation, "%v", err)
		}
	}

	localH2 := util.CopyTo(h2[s:e])
	localPerm := make([]uint64, e-s)
	for i := range localPerm {
		localPerm[i] = uint64(i)
	}

	if err := SortHash(ctx, localH2, localPerm); err != nil {
		return err
	}

	origPerm := util.CopyTo(perm[s:e])
	origH1 := h1[s]
	for i, lp := range localPerm {
		h2[s+i] = localH2[i]
		perm[s+i] = origPerm[lp]
		h1[s+i] = origH1
	}
	return nil
}

// appendH2Boundaries re-scans an already h2-sorted range and appends
// the sub-boundaries where h2 changes value.
func appendH2Boundaries(info []uint64, h2 []uint64, s, e int) []uint64 {
	for i := s + 1; i < e; i++ {
		if h2[i] != h2[i-1] {
			info = append(info, uint64(i))
		}
	}
	return append(info, uint64(e))
}
