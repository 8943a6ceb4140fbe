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
	"math"

	"github.com/gtools-go/gtools/pkg/column"
	"github.com/gtools-go/gtools/pkg/util"
)

// FuncKind is C5's tagged function code (spec.md §4.4, "Function
// dispatch is by a small tagged code"), replacing the source's
// string-name dispatch (spec.md §9 DESIGN NOTES).
type FuncKind int

const (
	FuncSum FuncKind = iota
	FuncMean
	FuncSD
	FuncMax
	FuncMin
	FuncCount
	FuncPercent
	FuncMedian
	FuncIQR
	FuncPctile // Pctile field carries the percentile value directly
	FuncFirst
	FuncLast
	FuncFirstNM
	FuncLastNM
	FuncTag
	FuncGroup
)

// Func names one requested aggregate: a kind plus, for FuncPctile, the
// requested percentile in (0, 100]. The median open question is
// resolved by SPEC_FULL.md §9: FuncMedian is a pure alias for
// FuncPctile with Pctile=50, not a distinct code path.
type Func struct {
	Kind   FuncKind
	Pctile float64
}

// Result holds one Func's per-group outputs, length J, plus its
// validity (a group's result is "missing" when the aggregate has no
// defined value, e.g. sd of a singleton group).
type Result struct {
	Func   Func
	Values []float64
	Valid  util.Bitmap
}

// Aggregate implements C5 (spec.md §4.4): for each group range in info
// and each requested function, reduce the multiset of values selected
// by perm[info[j]:info[j+1]).
func Aggregate(ctx *Context, values *column.Column, perm []uint64, info []uint64, funcs []Func) ([]Result, *Error) {
	j := len(info) - 1
	if j < 0 {
		return nil, newError(CodeInvariantViolation, "info[] must have at least one boundary")
	}

	countTotal := 0
	for _, idx := range perm {
		if !values.IsMissing(int(idx)) {
			countTotal++
		}
	}

	results := make([]Result, len(funcs))
	for fi, f := range funcs {
		if f.Kind == FuncTag {
			// tag varies per row within a group (spec.md §4.4: "1 if
			// row is first in its group... else 0"), so it has no
			// single value per group and cannot appear in a reduced
			// table; use BroadcastTag for the row-augmenting output
			// shape instead (spec.md §6, output (a)).
			return nil, newError(CodeUnsupportedSchema, "tag is a row-broadcast function; use BroadcastTag")
		}
		out := make([]float64, j)
		valid := util.Bitmap{}
		if err := valid.SetAllValid(j); err != nil {
			return nil, newError(CodeOOM, "%v", err)
		}
		for g := 0; g < j; g++ {
			lo, hi := info[g], info[g+1]
			v, ok := aggregateOne(f, values, perm, lo, hi, countTotal, g)
			out[g] = v
			if !ok {
				valid.SetInvalid(uint64(g))
			}
		}
		results[fi] = Result{Func: f, Values: out, Valid: valid}
	}
	return results, nil
}

// aggregateOne dispatches one function over one group's range,
// returning (value, ok) where ok=false means "missing".
func aggregateOne(f Func, values *column.Column, perm []uint64, lo, hi uint64, countTotal, group int) (float64, bool) {
	switch f.Kind {
	case FuncSum:
		return groupSum(values, perm, lo, hi)
	case FuncMean:
		s, n := groupSumCount(values, perm, lo, hi)
		if n == 0 {
			return 0, false
		}
		return s / float64(n), true
	case FuncSD:
		return groupSD(values, perm, lo, hi)
	case FuncMax:
		return groupExtreme(values, perm, lo, hi, false)
	case FuncMin:
		return groupExtreme(values, perm, lo, hi, true)
	case FuncCount:
		_, n := groupSumCount(values, perm, lo, hi)
		return float64(n), true
	case FuncPercent:
		nGroup := 0
		for k := lo; k < hi; k++ {
			if !values.IsMissing(int(perm[k])) {
				nGroup++
			}
		}
		if countTotal == 0 {
			return 0, false
		}
		return 100 * float64(nGroup) / float64(countTotal), true
	case FuncMedian:
		return groupPctile(values, perm, lo, hi, 50)
	case FuncIQR:
		p75, ok75 := groupPctile(values, perm, lo, hi, 75)
		p25, ok25 := groupPctile(values, perm, lo, hi, 25)
		if !ok75 || !ok25 {
			return 0, false
		}
		return p75 - p25, true
	case FuncPctile:
		return groupPctile(values, perm, lo, hi, f.Pctile)
	case FuncFirst:
		return valueAt(values, perm, lo)
	case FuncLast:
		return valueAt(values, perm, hi-1)
	case FuncFirstNM:
		return groupFirstLastNM(values, perm, lo, hi, true)
	case FuncLastNM:
		return groupFirstLastNM(values, perm, lo, hi, false)
	case FuncGroup:
		return float64(group + 1), true
	default:
		return 0, false
	}
}

func floatOf(values *column.Column, row int) (float64, bool) {
	if values.IsMissing(row) {
		return 0, false
	}
	switch values.Kind {
	case column.KindInt64:
		return float64(values.Ints[row]), true
	case column.KindFloat64:
		return values.Floats[row], true
	default:
		return 0, false
	}
}

func valueAt(values *column.Column, perm []uint64, pos uint64) (float64, bool) {
	return floatOf(values, int(perm[pos]))
}

func groupSum(values *column.Column, perm []uint64, lo, hi uint64) (float64, bool) {
	s, n := groupSumCount(values, perm, lo, hi)
	if n == 0 {
		return 0, false
	}
	return s, true
}

func groupSumCount(values *column.Column, perm []uint64, lo, hi uint64) (float64, int) {
	var s float64
	n := 0
	for k := lo; k < hi; k++ {
		if v, ok := floatOf(values, int(perm[k])); ok {
			s += v
			n++
		}
	}
	return s, n
}

// groupSD is the sample standard deviation with denominator (n-1);
// n<2 has no defined value (spec.md §4.4).
func groupSD(values *column.Column, perm []uint64, lo, hi uint64) (float64, bool) {
	s, n := groupSumCount(values, perm, lo, hi)
	if n < 2 {
		return 0, false
	}
	mean := s / float64(n)
	var ss float64
	for k := lo; k < hi; k++ {
		if v, ok := floatOf(values, int(perm[k])); ok {
			d := v - mean
			ss += d * d
		}
	}
	return math.Sqrt(ss / float64(n-1)), true
}

func groupExtreme(values *column.Column, perm []uint64, lo, hi uint64, wantMin bool) (float64, bool) {
	found := false
	var best float64
	for k := lo; k < hi; k++ {
		v, ok := floatOf(values, int(perm[k]))
		if !ok {
			continue
		}
		if !found || (wantMin && v < best) || (!wantMin && v > best) {
			best = v
			found = true
		}
	}
	return best, found
}

func groupFirstLastNM(values *column.Column, perm []uint64, lo, hi uint64, first bool) (float64, bool) {
	if first {
		for k := lo; k < hi; k++ {
			if v, ok := floatOf(values, int(perm[k])); ok {
				return v, true
			}
		}
		return 0, false
	}
	for k := hi; k > lo; k-- {
		if v, ok := floatOf(values, int(perm[k-1])); ok {
			return v, true
		}
	}
	return 0, false
}

// groupPctile implements spec.md §4.4's pctile definition exactly,
// including the n=1/n=2 special cases and the "average with the
// previous order statistic when p*n/100 is integral" rule, grounded on
// the original mf_array_dquantile_range. p is always in (0, 100]; the
// qth==0 case (rank below 1) takes the non-integral path and yields
// the minimum, order statistic 0.
func groupPctile(values *column.Column, perm []uint64, lo, hi uint64, p float64) (float64, bool) {
	util.AssertFunc(p > 0 && p <= 100)

	s := make([]float64, 0, hi-lo)
	for k := lo; k < hi; k++ {
		if v, ok := floatOf(values, int(perm[k])); ok {
			s = append(s, v)
		}
	}
	n := len(s)
	if n == 0 {
		return 0, false
	}
	if n == 1 {
		return s[0], true
	}
	if n == 2 {
		switch {
		case p < 50:
			return orderStatistic(s, 0), true
		case p > 50:
			return orderStatistic(s, 1), true
		default:
			return (orderStatistic(s, 0) + orderStatistic(s, 1)) / 2, true
		}
	}

	rank := p * float64(n) / 100
	floorRank := math.Floor(rank)
	k := int(floorRank)
	if rank == floorRank {
		// integral rank: average with the previous order statistic
		lower := orderStatistic(s, clampIdx(k-1, n))
		upper := orderStatistic(s, clampIdx(k, n))
		return (lower + upper) / 2, true
	}
	return orderStatistic(s, clampIdx(k, n)), true
}

func clampIdx(k, n int) int {
	if k < 0 {
		return 0
	}
	if k >= n {
		return n - 1
	}
	return k
}

// BroadcastGroup implements the "group" function: a dense 1..J label
// in sort order, scattered back to original row order via perm — a
// direct O(N) scatter, no hash map required (SPEC_FULL.md §4.4).
func BroadcastGroup(n int, perm []uint64, info []uint64) []int {
	labels := make([]int, n)
	for g := 0; g+1 < len(info); g++ {
		for k := info[g]; k < info[g+1]; k++ {
			labels[perm[k]] = g + 1
		}
	}
	return labels
}

// BroadcastTag implements the "tag" function: 1 if a row is first in
// its group in original row order, else 0.
func BroadcastTag(n int, perm []uint64, info []uint64) []int {
	tags := make([]int, n)
	for g := 0; g+1 < len(info); g++ {
		lo, hi := info[g], info[g+1]
		if lo == hi {
			continue
		}
		firstRow := perm[lo]
		for k := lo + 1; k < hi; k++ {
			if perm[k] < firstRow {
				firstRow = perm[k]
			}
		}
		tags[firstRow] = 1
	}
	return tags
}
