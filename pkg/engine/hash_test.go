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
	"encoding/binary"
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/gtools-go/gtools/pkg/column"
	"github.com/gtools-go/gtools/pkg/util"
)

func intCol(name string, vals ...int64) *column.Column {
	return &column.Column{Name: name, Kind: column.KindInt64, Ints: vals}
}

func floatCol(name string, vals ...float64) *column.Column {
	return &column.Column{Name: name, Kind: column.KindFloat64, Floats: vals}
}

func newTestContext() *Context {
	return NewContext(DefaultOptions(), nil)
}

func TestHashRows_RejectsZeroByColumns(t *testing.T) {
	ctx := newTestContext()
	_, err := HashRows(ctx, column.Set{})
	require.NotNil(t, err)
	require.Equal(t, CodeUnsupportedSchema, err.Code)
}

func TestHashRows_BijectModeForSmallIntegerRanges(t *testing.T) {
	ctx := newTestContext()
	by := column.Set{intCol("g", 0, 0, 1, 0)}
	fp, err := HashRows(ctx, by)
	require.Nil(t, err)
	require.Equal(t, BijectMode, fp.Mode)
	require.Equal(t, fp.H1[0], fp.H1[1])
	require.Equal(t, fp.H1[0], fp.H1[3])
	require.NotEqual(t, fp.H1[0], fp.H1[2])
}

// TestHashRows_MissingIntRoutesToHashMode guards against a missing
// row's sentinel (column.NullInt64) leaking an out-of-range wrapped
// offset into BijectMode's [0, product) space, where no h2 tiebreak
// exists to recover from a resulting collision.
func TestHashRows_MissingIntRoutesToHashMode(t *testing.T) {
	ctx := newTestContext()
	by := column.Set{intCol("g", 5, column.NullInt64, 7)}
	fp, err := HashRows(ctx, by)
	require.Nil(t, err)
	require.Equal(t, Hash128Mode, fp.Mode)
}

// TestHashRows_BijectionVsHashEquivalence is spec.md §8 scenario 6.
func TestHashRows_BijectionVsHashEquivalence(t *testing.T) {
	by := column.Set{
		intCol("a", 0, 0, 1, 0),
		intCol("b", 0, 1, 0, 0),
	}

	ctxBiject := newTestContext()
	fpBiject, err := HashRows(ctxBiject, by)
	require.Nil(t, err)
	require.Equal(t, BijectMode, fpBiject.Mode)

	ctxHash := newTestContext()
	fpHash, err := hash128(ctxHash, by, by.Len())
	require.Nil(t, err)

	// Both modes must yield the same number of distinct fingerprints,
	// i.e. the same number of groups.
	groupsBiject := map[uint64][]int{}
	for i, h := range fpBiject.H1 {
		groupsBiject[h] = append(groupsBiject[h], i)
	}
	groupsHash := map[uint64][]int{}
	for i, h := range fpHash.H1 {
		groupsHash[h] = append(groupsHash[h], i)
	}
	require.Equal(t, len(groupsBiject), len(groupsHash))
}

// TestHashRows_OOMPropagatesAsError installs a FailAfter allocator so
// hash128's first scratch-buffer request fails, exercising the
// allocation-failure path end to end: HashRows surfaces it as CodeOOM.
func TestHashRows_OOMPropagatesAsError(t *testing.T) {
	ctx := newTestContext()
	ctx.Alloc = &util.FailAfter{Remaining: 0}
	c := &column.Column{Name: "s", Kind: column.KindString, Width: 4, Bytes: []byte("abcdefgh")}
	_, err := HashRows(ctx, column.Set{c})
	require.NotNil(t, err)
	require.Equal(t, CodeOOM, err.Code)
}

// TestHashBytes_OracleAgreesWithHash128Grouping cross-checks hash128's
// metro-hash grouping against an independent hash (util.HashBytes, a
// Murmur2 variant unrelated to go-metro) run over the same canonical
// byte image: the two hash functions must find the same number of
// distinct groups, evidence the grouping reflects the by-tuples, not a
// collision artifact of one specific hash.
func TestHashBytes_OracleAgreesWithHash128Grouping(t *testing.T) {
	by := column.Set{
		intCol("a", 0, 0, 1, 0, 1),
		intCol("b", 0, 1, 0, 0, 0),
	}
	n := by.Len()
	ctx := newTestContext()
	fp, err := hash128(ctx, by, n)
	require.Nil(t, err)

	oracle := map[uint64][]int{}
	for i := 0; i < n; i++ {
		buf := rowBytes(by, i)
		h := util.HashBytes(unsafe.Pointer(&buf[0]), uint64(len(buf)))
		oracle[h] = append(oracle[h], i)
	}
	groupsHash := map[uint64][]int{}
	for i, h := range fp.H1 {
		groupsHash[h] = append(groupsHash[h], i)
	}
	require.Equal(t, len(oracle), len(groupsHash))
}

func rowBytes(by column.Set, row int) []byte {
	width := 0
	for _, c := range by {
		if c.Kind == column.KindString {
			width += c.Width
		} else {
			width += 8
		}
	}
	buf := make([]byte, width)
	off := 0
	for _, c := range by {
		switch c.Kind {
		case column.KindInt64:
			binary.LittleEndian.PutUint64(buf[off:], uint64(c.Ints[row]))
			off += 8
		case column.KindFloat64:
			binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(c.Floats[row]))
			off += 8
		case column.KindString:
			copy(buf[off:off+c.Width], c.StringAt(row))
			off += c.Width
		}
	}
	return buf
}

func TestHashRows_HashModeForStringColumns(t *testing.T) {
	ctx := newTestContext()
	c := &column.Column{Name: "s", Kind: column.KindString, Width: 4, Bytes: []byte("abcdabcdefgh")}
	fp, err := HashRows(ctx, column.Set{c})
	require.Nil(t, err)
	require.Equal(t, Hash128Mode, fp.Mode)
	require.Equal(t, fp.H1[0], fp.H1[1])
	require.NotEqual(t, fp.H1[0], fp.H1[2])
}
