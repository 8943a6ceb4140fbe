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

import "github.com/gtools-go/gtools/pkg/util"

// quickselect implements C4 (spec.md §4.5): partially orders v[lo:hi]
// so that v[k] holds the value that would be there under a full sort,
// using a median-of-three pivot and Hoare partitioning. Worst case is
// O(n^2); inputs are not adversarial so this is accepted per spec.md.
// Empty ranges and out-of-range k are invariant violations — the
// caller must never request them.
func quickselect(v []float64, lo, hi, k int) float64 {
	util.AssertFunc(lo <= k && k < hi && hi <= len(v))
	for hi-lo > 1 {
		p := hoarePartition(v, lo, hi)
		if k < p {
			hi = p
		} else {
			lo = p
		}
	}
	return v[lo]
}

func hoarePartition(v []float64, lo, hi int) int {
	pivot := medianOfThree(v[lo], v[(lo+hi-1)/2], v[hi-1])
	i, j := lo-1, hi
	for {
		for {
			i++
			if v[i] >= pivot {
				break
			}
		}
		for {
			j--
			if v[j] <= pivot {
				break
			}
		}
		if i >= j {
			return j + 1
		}
		v[i], v[j] = v[j], v[i]
	}
}

func medianOfThree(a, b, c float64) float64 {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	if a > b {
		b = a
	}
	return b
}

// orderStatistic returns the k-th smallest (0-indexed) value of a
// scratch copy of s, used by pctile/median/iqr so the caller's data is
// never mutated.
func orderStatistic(s []float64, k int) float64 {
	scratch := make([]float64, len(s))
	copy(scratch, s)
	return quickselect(scratch, 0, len(scratch), k)
}
