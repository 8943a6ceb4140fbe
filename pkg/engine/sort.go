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
)

const (
	// The counting-sort ceiling (default 2^24, spec.md §5) is
	// Options.CountingSortCeiling; these fix the radix layout.
	radixPassBits  = 16
	radixPasses    = 4
	radixBucketCnt = 1 << radixPassBits
)

// SortHash implements C2 (spec.md §4.2): sorts h1[] non-decreasing in
// place while permuting perm[] in lockstep, stably. perm[] is either
// identity or a permutation to be refined further.
func SortHash(ctx *Context, h1 []uint64, perm []uint64) *Error {
	n := len(h1)
	if n == 0 {
		return nil
	}
	min, max := h1[0], h1[0]
	for _, v := range h1 {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	rng := max - min + 1

	if rng < uint64(ctx.Opts.CountingSortCeiling) {
		ctx.Stats.SortMode = "counting"
		if ctx.Opts.Verbose {
			ctx.Log.Info("counting sort on hash", zap.Uint64("min", min), zap.Uint64("max", max))
		}
		return countingSort(ctx, h1, perm, min, rng)
	}

	ctx.Stats.SortMode = "radix16"
	if ctx.Opts.Verbose {
		ctx.Log.Info("radix sort on hash", zap.Int("passes", radixPasses), zap.Int("bits", radixPassBits))
	}
	return radixSort(ctx, h1, perm)
}

// countingSort implements spec.md §4.2's counting-sort branch: histogram
// into a rng-sized count array, prefix-sum to offsets, then a stable
// forward scatter (the direction chosen in SPEC_FULL.md §9).
func countingSort(ctx *Context, h1 []uint64, perm []uint64, min, rng uint64) *Error {
	n := len(h1)
	counts := make([]uint64, rng+1)
	for _, v := range h1 {
		counts[v-min+1]++
	}
	for i := uint64(1); i < uint64(len(counts)); i++ {
		counts[i] += counts[i-1]
	}

	hOut, err := allocU64(ctx, n)
	if err != nil {
		return err
	}
	pOut, err := allocU64(ctx, n)
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		bucket := h1[i] - min
		pos := counts[bucket]
		hOut[pos] = h1[i]
		pOut[pos] = perm[i]
		counts[bucket]++
	}
	copy(h1, hOut)
	copy(perm, pOut)
	return nil
}

// radixSort implements spec.md §4.2's LSD radix branch: 16 bits at a
// time for 4 passes over the 64-bit key. The four passes' histograms
// may be computed in parallel (radixHistograms); the scatters remain
// strictly sequential, each pass consuming the previous pass's output.
func radixSort(ctx *Context, h1 []uint64, perm []uint64) *Error {
	n := len(h1)
	hBuf := [2][]uint64{h1, nil}
	pBuf := [2][]uint64{perm, nil}

	scratchH, err := allocU64(ctx, n)
	if err != nil {
		return err
	}
	scratchP, err := allocU64(ctx, n)
	if err != nil {
		return err
	}
	hBuf[1] = scratchH
	pBuf[1] = scratchP

	hists, ferr := radixHistograms(ctx, h1)
	if ferr != nil {
		return ferr
	}

	cur := 0
	for pass := 0; pass < radixPasses; pass++ {
		shift := uint(pass * radixPassBits)
		src, dst := cur, 1-cur
		radixScatterPass(hBuf[src], pBuf[src], hBuf[dst], pBuf[dst], hists[pass], shift)
		cur = dst
	}

	if cur != 0 {
		copy(h1, hBuf[cur])
		copy(perm, pBuf[cur])
	}
	return nil
}

// radixHistograms computes the per-pass bucket counts. Per spec.md §4.2
// and §5, the four passes' histograms are independent of each other
// (each reads only the original h1[]) so they are computed as four
// tasks, one per pass, on at most Options.Workers goroutines at once,
// joined before any scatter begins.
func radixHistograms(ctx *Context, h1 []uint64) ([radixPasses][]int, *Error) {
	var hists [radixPasses][]int
	for p := range hists {
		hists[p] = make([]int, radixBucketCnt)
	}

	err := forkJoin(ctx, radixPasses, func(pass int) error {
		shift := uint(pass * radixPassBits)
		hist := hists[pass]
		for _, v := range h1 {
			bucket := (v >> shift) & (radixBucketCnt - 1)
			hist[bucket]++
		}
		return nil
	})
	if err != nil {
		return hists, newError(CodeOOM, "%v", err)
	}

	for p := range hists {
		prefixSum(hists[p])
	}
	return hists, nil
}

func prefixSum(counts []int) {
	sum := 0
	for i, c := range counts {
		counts[i] = sum
		sum += c
	}
}

// radixScatterPass stably scatters one pass: reads input left to right
// and advances each bucket's offset post-placement, per spec.md §4.2's
// stability requirement.
func radixScatterPass(hSrc, pSrc, hDst, pDst []uint64, offsets []int, shift uint) {
	cursor := make([]int, len(offsets))
	copy(cursor, offsets)
	for i, v := range hSrc {
		bucket := (v >> shift) & (radixBucketCnt - 1)
		pos := cursor[bucket]
		hDst[pos] = v
		pDst[pos] = pSrc[i]
		cursor[bucket]++
	}
}
