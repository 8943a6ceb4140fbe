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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gtools-go/gtools/pkg/column"
)

// TestRun_EmptyByColumnNotAllowed is spec.md §8 scenario 1.
func TestRun_EmptyByColumnNotAllowed(t *testing.T) {
	ctx := newTestContext()
	req := &Request{
		By:        column.Set{},
		ValueCols: column.Set{floatCol("v", 1, 2, 3)},
		Funcs:     []Func{{Kind: FuncSum}},
	}
	_, err := Run(ctx, req)
	require.NotNil(t, err)
	require.Equal(t, CodeUnsupportedSchema, err.Code)
	require.Equal(t, StateDone, ctx.State)
}

func TestRun_GroupsAndAggregatesEndToEnd(t *testing.T) {
	ctx := newTestContext()
	by := intCol("g", 1, 2, 1, 3, 2, 1)
	values := floatCol("v", 10, 20, 30, 40, 50, 60)

	req := &Request{
		By:        column.Set{by},
		ValueCols: column.Set{values},
		Funcs:     []Func{{Kind: FuncSum}, {Kind: FuncCount}, {Kind: FuncGroup}},
	}
	res, err := Run(ctx, req)
	require.Nil(t, err)
	require.Equal(t, 3, res.J)

	oracle := referenceGroupInt64(by)
	require.Equal(t, len(oracle), res.J)

	sums := res.Outputs["v"][0].Values
	total := 0.0
	for _, s := range sums {
		total += s
	}
	require.Equal(t, 210.0, total)
}

func TestRun_StabilityAcrossEqualKeys(t *testing.T) {
	ctx := newTestContext()
	by := intCol("g", 5, 5, 5)
	values := floatCol("v", 1, 2, 3)
	req := &Request{
		By:        column.Set{by},
		ValueCols: column.Set{values},
		Funcs:     []Func{{Kind: FuncFirst}, {Kind: FuncLast}},
	}
	res, err := Run(ctx, req)
	require.Nil(t, err)
	require.Equal(t, 1, res.J)
	require.Equal(t, 1.0, res.Outputs["v"][0].Values[0])
	require.Equal(t, 3.0, res.Outputs["v"][1].Values[0])
}

// TestRun_MultipleValueColumns exercises two value columns in one
// Request; Aggregate runs once per column but the Aggregated state
// transition must fire exactly once for the whole Run.
func TestRun_MultipleValueColumns(t *testing.T) {
	ctx := newTestContext()
	by := intCol("g", 1, 2, 1, 2)
	v1 := floatCol("v1", 10, 20, 30, 40)
	v2 := floatCol("v2", 1, 2, 3, 4)
	req := &Request{
		By:        column.Set{by},
		ValueCols: column.Set{v1, v2},
		Funcs:     []Func{{Kind: FuncSum}},
	}
	res, err := Run(ctx, req)
	require.Nil(t, err)
	require.Equal(t, 2, res.J)
	require.Contains(t, res.Outputs, "v1")
	require.Contains(t, res.Outputs, "v2")
	require.Equal(t, StateDone, ctx.State)
}

func TestRun_MaskFiltersRows(t *testing.T) {
	ctx := newTestContext()
	by := intCol("g", 1, 1, 2)
	values := floatCol("v", 1, 2, 3)
	req := &Request{
		By:        column.Set{by},
		Mask:      &Mask{Selected: []bool{true, false, true}},
		ValueCols: column.Set{values},
		Funcs:     []Func{{Kind: FuncSum}},
	}
	res, err := Run(ctx, req)
	require.Nil(t, err)
	require.Equal(t, 2, res.J)
}
