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
	"bytes"
	"math"

	"github.com/tidwall/btree"

	"github.com/gtools-go/gtools/pkg/column"
	"github.com/gtools-go/gtools/pkg/util"
)

// CompareUint64 is the forward unsigned-64 comparator family (C6).
func CompareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareUint64Rev is CompareUint64's reverse variant.
func CompareUint64Rev(a, b uint64) int { return -CompareUint64(a, b) }

// CompareInt64 is the forward signed-64 comparator family (C6), used
// for by-column values rather than CompareUint64: by-columns are
// signed (spec.md §3, "64-bit signed integer-like numeric"), and a
// plain uint64 reinterpretation inverts the ordering of negative
// values against non-negative ones.
func CompareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareInt64Rev is CompareInt64's reverse variant.
func CompareInt64Rev(a, b int64) int { return -CompareInt64(a, b) }

// CompareFloat64 is the forward float-64 comparator family (C6), with
// a total-order treatment of the missing sentinel (NaN sorts last)
// rather than the source's lossy `(int)(a-b)` subtraction — resolved
// in SPEC_FULL.md §9.
func CompareFloat64(a, b float64) int {
	switch {
	case a == b, math.IsNaN(a) && math.IsNaN(b):
		return 0
	case util.GreaterFloat(a, b):
		return 1
	default:
		return -1
	}
}

// CompareFloat64Rev is CompareFloat64's reverse variant.
func CompareFloat64Rev(a, b float64) int { return -CompareFloat64(a, b) }

// CompareBytes is the forward byte-string lexicographic comparator
// family (C6).
func CompareBytes(a, b []byte) int { return bytes.Compare(a, b) }

// CompareBytesRev is CompareBytes' reverse variant.
func CompareBytesRev(a, b []byte) int { return -bytes.Compare(a, b) }

// Keyed is a comparator value describing one keyed field to sort or
// compare by: which by-column it reads (Col), and in which direction.
// This replaces the source's void*+byte-offset comparator polymorphism
// (spec.md §9 DESIGN NOTES) with a value that dispatches on Kind.
type Keyed struct {
	Col     *column.Column
	Reverse bool
}

// Compare compares row i against row j through the keyed column,
// dispatching on the column's Kind.
func (k Keyed) Compare(i, j int) int {
	var c int
	switch k.Col.Kind {
	case column.KindInt64:
		c = CompareInt64(k.Col.Ints[i], k.Col.Ints[j])
	case column.KindFloat64:
		c = CompareFloat64(k.Col.Floats[i], k.Col.Floats[j])
	case column.KindString:
		c = CompareBytes(k.Col.StringAt(i), k.Col.StringAt(j))
	}
	if k.Reverse {
		return -c
	}
	return c
}

// RowOrder builds a deterministic ascending index over row indices
// [0, n) using a chain of Keyed comparators (primary, then
// tie-breakers), built in a github.com/tidwall/btree.BTreeG and
// returned as a flat sorted slice of row indices (the tree itself is
// not returned) — used when C6 is invoked to produce a deterministic sort of the
// by-columns themselves rather than arbitrary hash order.
func RowOrder(n int, keys []Keyed) []int {
	less := func(a, b int) bool {
		for _, k := range keys {
			if c := k.Compare(a, b); c != 0 {
				return c < 0
			}
		}
		return a < b
	}
	tr := btree.NewBTreeG[int](less)
	for i := 0; i < n; i++ {
		tr.Set(i)
	}
	out := make([]int, 0, n)
	tr.Scan(func(item int) bool {
		out = append(out, item)
		return true
	})
	return out
}
