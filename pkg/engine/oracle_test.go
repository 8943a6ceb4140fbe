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
	"fmt"

	"github.com/kamstrup/intmap"

	"github.com/gtools-go/gtools/pkg/column"
)

// referenceGroupInt64 is the "reference straight-equality group" oracle
// spec.md §8 calls for, specialized to the single-int64-by-column case
// using github.com/kamstrup/intmap for a fast reference implementation
// distinct from the engine's own hash/sort path.
func referenceGroupInt64(by *column.Column) map[int64][]int {
	m := intmap.New[int64, []int](by.Len())
	for i, v := range by.Ints {
		cur, _ := m.Get(v)
		m.Put(v, append(cur, i))
	}
	out := make(map[int64][]int, m.Len())
	m.ForEach(func(k int64, v []int) bool {
		out[k] = v
		return true
	})
	return out
}

// referenceGroupTuple is the general oracle for multi-column or
// non-integer by-keys: group by the canonical string form of the
// tuple, independent of the engine's own hashing.
func referenceGroupTuple(by column.Set) map[string][]int {
	n := by.Len()
	out := make(map[string][]int)
	for i := 0; i < n; i++ {
		key := tupleKey(by, i)
		out[key] = append(out[key], i)
	}
	return out
}

func tupleKey(by column.Set, row int) string {
	key := ""
	for _, c := range by {
		switch c.Kind {
		case column.KindInt64:
			key += fmt.Sprintf("%d|", c.Ints[row])
		case column.KindFloat64:
			key += fmt.Sprintf("%v|", c.Floats[row])
		case column.KindString:
			key += fmt.Sprintf("%x|", c.StringAt(row))
		}
	}
	return key
}
