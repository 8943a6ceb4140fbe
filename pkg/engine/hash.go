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
	"math/bits"

	"github.com/axiomhq/hyperloglog"
	metro "github.com/dgryski/go-metro"
	"go.uber.org/zap"

	"github.com/gtools-go/gtools/pkg/column"
	"github.com/gtools-go/gtools/pkg/util"
)

// HashMode selects which fingerprint C1 produced, per spec.md §3/§4.1.
type HashMode int

const (
	BijectMode HashMode = iota
	Hash128Mode
)

// Fingerprint is C1's output: either a bijected integer in H1 (H2 unused,
// collisions impossible by construction) or a 128-bit hash split across
// H1/H2, where only H1 drives sort order and H2 is the collision
// tiebreaker.
type Fingerprint struct {
	Mode HashMode
	H1   []uint64
	H2   []uint64
	// EstimatedGroups is a HyperLogLog pre-estimate of the distinct
	// by-tuple count (Hash128Mode only), reported by Explain and the
	// verbose log. PanelSetup does not read it; info[] grows as
	// boundaries are found.
	EstimatedGroups uint64
}

// HashRows implements spec.md §4.1: classify the by-key schema, then
// either bijection or a 128-bit non-cryptographic hash over the
// canonical byte image of each row.
func HashRows(ctx *Context, by column.Set) (*Fingerprint, *Error) {
	if len(by) == 0 {
		return nil, newError(CodeUnsupportedSchema, "zero by-columns")
	}
	n := by.Len()
	if n == 0 {
		return nil, newError(CodeEmptyInput, "zero rows")
	}
	for _, c := range by {
		switch c.Kind {
		case column.KindInt64, column.KindFloat64, column.KindString:
		default:
			return nil, newError(CodeUnsupportedSchema, "unsupported column kind %v", c.Kind)
		}
	}

	if by.AllInteger() {
		if fp, ok := tryBiject(ctx, by, n); ok {
			ctx.Stats.HashMode = "biject"
			return fp, nil
		}
	}

	fp, err := hash128(ctx, by, n)
	if err != nil {
		return nil, err
	}
	ctx.Stats.HashMode = "hash128"
	return fp, nil
}

// tryBiject computes per-column (min, max) and, if the product of
// ranges fits under 2^63, returns a BijectMode fingerprint where
// h1[i] = sum_k (x_k[i] - min_k) * prod_{l<k} range_l.
func tryBiject(ctx *Context, by column.Set, n int) (*Fingerprint, bool) {
	ranges := make([]uint64, len(by))
	mins := make([]int64, len(by))
	for k, c := range by {
		if c.Len() == 0 {
			return nil, false
		}
		mn, mx := c.Ints[0], c.Ints[0]
		for _, v := range c.Ints {
			if v == column.NullInt64 {
				// a missing row has no place in the bijected
				// [0, product) space without reserving a slot for it,
				// so bail out to HashMode rather than risk an
				// out-of-range, wrapped offset colliding with a
				// genuinely distinct by-tuple.
				return nil, false
			}
			if v < mn {
				mn = v
			}
			if v > mx {
				mx = v
			}
		}
		mins[k] = mn
		r := uint64(mx-mn) + 1
		ranges[k] = r
	}

	product := uint64(1)
	for _, r := range ranges {
		hi, lo := bits.Mul64(product, r)
		if hi != 0 || lo >= (uint64(1)<<63) {
			return nil, false
		}
		product = lo
	}

	h1, err := allocU64(ctx, n)
	if err != nil {
		return nil, false
	}
	for i := 0; i < n; i++ {
		var acc uint64
		mult := uint64(1)
		for k, c := range by {
			acc += uint64(c.Ints[i]-mins[k]) * mult
			mult *= ranges[k]
		}
		h1[i] = acc
	}
	return &Fingerprint{Mode: BijectMode, H1: h1}, true
}

// hash128 assembles each row's canonical byte image (little-endian
// 8-byte numerics, width-padded strings) and feeds it through a 128-bit
// non-cryptographic hash. A HyperLogLog sketch observes the H1 stream
// to pre-estimate J, stored in Fingerprint.EstimatedGroups.
func hash128(ctx *Context, by column.Set, n int) (*Fingerprint, *Error) {
	h1, err := allocU64(ctx, n)
	if err != nil {
		return nil, err
	}
	h2, err := allocU64(ctx, n)
	if err != nil {
		return nil, err
	}

	width := 0
	for _, c := range by {
		if c.Kind == column.KindString {
			width += c.Width
		} else {
			width += 8
		}
	}
	buf := make([]byte, width)

	sketch := hyperloglog.New16()
	var hbuf [8]byte
	for i := 0; i < n; i++ {
		off := 0
		for _, c := range by {
			switch c.Kind {
			case column.KindInt64:
				binary.LittleEndian.PutUint64(buf[off:], uint64(c.Ints[i]))
				off += 8
			case column.KindFloat64:
				v := c.Floats[i]
				binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v))
				off += 8
			case column.KindString:
				copy(buf[off:off+c.Width], c.StringAt(i))
				off += c.Width
			}
		}
		lo, hi := metro.Hash128(buf, 0)
		h1[i] = lo
		h2[i] = hi
		binary.LittleEndian.PutUint64(hbuf[:], lo)
		sketch.Insert(hbuf[:])
	}

	if ctx.Opts.Verbose {
		ctx.Log.Info("hash128 computed",
			zap.Int("rows", n), zap.Uint64("estimatedGroups", sketch.Estimate()))
	}

	return &Fingerprint{
		Mode:            Hash128Mode,
		H1:              h1,
		H2:              h2,
		EstimatedGroups: sketch.Estimate(),
	}, nil
}

// allocU64 acquires n*8 scratch bytes through the context's allocator
// (so a FailAfter allocator can exercise the OOM path) and hands back a
// zero-copy []uint64 view over it, in the teacher's ToSlice idiom.
func allocU64(ctx *Context, n int) ([]uint64, *Error) {
	raw, err := ctx.Alloc.Alloc(n * 8)
	if err != nil {
		return nil, newError(CodeOOM, "%v", err)
	}
	return util.ToSlice[uint64](raw, 8), nil
}
