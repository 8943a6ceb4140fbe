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

// Package column defines the three column kinds the engine operates on:
// 64-bit signed integers, 64-bit floats, and fixed-width byte strings.
package column

import "math"

// Kind tags the physical representation of a Column.
type Kind uint8

const (
	KindInt64 Kind = iota
	KindFloat64
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// NullInt64 is the reserved sentinel for a missing integer value.
const NullInt64 = math.MinInt64

// NullFloat64 is the reserved sentinel for a missing float value: NaN,
// compared under a total-order rule in pkg/engine/compare.go rather than
// IEEE-754 equality (NaN != NaN would otherwise break grouping).
var NullFloat64 = math.NaN()

// NullString returns the reserved "missing" byte pattern for a
// fixed-width string column of the given width: all 0xFF, a pattern no
// valid host payload is allowed to produce.
func NullString(width int) []byte {
	b := make([]byte, width)
	for i := range b {
		b[i] = 0xFF
	}
	return b
}

// IsNullString reports whether b is the reserved missing pattern.
func IsNullString(b []byte) bool {
	for _, c := range b {
		if c != 0xFF {
			return false
		}
	}
	return true
}

// Column is one typed, fixed-width vector of N values. Exactly one of
// Ints, Floats, or Bytes is populated, selected by Kind.
type Column struct {
	Name   string
	Kind   Kind
	Ints   []int64
	Floats []float64
	// Bytes holds N fixed-width records back to back; Width is each
	// record's size. StringAt returns one record as a view onto Bytes.
	Bytes []byte
	Width int
}

// Len returns the row count of the column.
func (c *Column) Len() int {
	switch c.Kind {
	case KindInt64:
		return len(c.Ints)
	case KindFloat64:
		return len(c.Floats)
	case KindString:
		if c.Width == 0 {
			return 0
		}
		return len(c.Bytes) / c.Width
	default:
		return 0
	}
}

// StringAt returns the fixed-width record for row i as a byte slice
// sharing the column's backing array.
func (c *Column) StringAt(i int) []byte {
	return c.Bytes[i*c.Width : (i+1)*c.Width]
}

// IsMissing reports whether row i's value is the reserved sentinel for
// its column kind.
func (c *Column) IsMissing(i int) bool {
	switch c.Kind {
	case KindInt64:
		return c.Ints[i] == NullInt64
	case KindFloat64:
		return math.IsNaN(c.Floats[i])
	case KindString:
		return IsNullString(c.StringAt(i))
	default:
		return false
	}
}

// Set is an ordered tuple of columns forming a by-key or value-column
// list. The schema (kind sequence) is fixed for one engine invocation.
type Set []*Column

// Len returns the common row count of the set, or 0 if empty.
func (s Set) Len() int {
	if len(s) == 0 {
		return 0
	}
	return s[0].Len()
}

// AllInteger reports whether every column in the set is KindInt64 —
// the precondition for the Hasher's BijectMode fast path.
func (s Set) AllInteger() bool {
	for _, c := range s {
		if c.Kind != KindInt64 {
			return false
		}
	}
	return true
}
