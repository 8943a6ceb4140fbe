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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gtools-go/gtools/pkg/util"
)

func TestPanelSetup_NoCollisions(t *testing.T) {
	ctx := newTestContext()
	h1 := []uint64{1, 1, 2, 2, 2, 5}
	perm := []uint64{0, 1, 2, 3, 4, 5}

	info, err := PanelSetup(ctx, h1, nil, perm)
	require.Nil(t, err)
	require.Equal(t, []uint64{0, 2, 5, 6}, info)
	require.Equal(t, 0, ctx.Stats.Collisions)
}

// TestPanelSetup_CollisionRecovery is spec.md §8 scenario 5: two
// by-tuples crafted so h1 collides but h2 differs; expect J=2 and the
// collision counter to be exactly 1.
func TestPanelSetup_CollisionRecovery(t *testing.T) {
	ctx := newTestContext()
	// Rows 0,2 share tuple A (h2=100); rows 1,3 share tuple B (h2=200);
	// all four share the same 64-bit h1, forcing a collision.
	h1 := []uint64{7, 7, 7, 7}
	h2 := []uint64{100, 200, 100, 200}
	perm := []uint64{0, 1, 2, 3}

	info, err := PanelSetup(ctx, h1, h2, perm)
	require.Nil(t, err)
	require.Equal(t, 1, ctx.Stats.Collisions)
	require.Equal(t, 3, len(info)) // J=2 -> 3 boundaries
	j := len(info) - 1
	require.Equal(t, 2, j)

	// Every group's rows must share the same h2.
	for g := 0; g < j; g++ {
		lo, hi := info[g], info[g+1]
		first := h2[lo]
		for k := lo; k < hi; k++ {
			require.Equal(t, first, h2[k])
		}
	}
}

// TestPanelSetup_CollisionRecoveryFaultInjection forces resolveCollision
// down its error path via the fault-injection registry, without
// needing a real resource exhaustion to happen.
func TestPanelSetup_CollisionRecoveryFaultInjection(t *testing.T) {
	util.Open(faultScopePanel)
	defer util.Close(faultScopePanel)
	util.Register(faultScopePanel, "resolveCollision", nil, func(args []string) error {
		return errors.New("injected collision-recovery failure")
	})

	ctx := newTestContext()
	h1 := []uint64{7, 7, 7, 7}
	h2 := []uint64{100, 200, 100, 200}
	perm := []uint64{0, 1, 2, 3}

	_, err := PanelSetup(ctx, h1, h2, perm)
	require.NotNil(t, err)
	require.Equal(t, CodeInvariantViolation, err.Code)
}

func TestPanelSetup_EmptyInput(t *testing.T) {
	ctx := newTestContext()
	info, err := PanelSetup(ctx, nil, nil, nil)
	require.Nil(t, err)
	require.Equal(t, []uint64{0}, info)
}
