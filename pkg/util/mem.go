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

package util

import "fmt"

// ErrOOM is returned by a BytesAllocator when it refuses a request.
// The engine's hash and sort buffers (engine.allocU64) go through the
// context's allocator, GAlloc by default, so a test can install
// FailAfter and exercise those allocation-failure paths
// deterministically; smaller scratch (histograms, counts, per-group
// copies) is allocated with make().
var ErrOOM = fmt.Errorf("gtools: out of memory")

type BytesAllocator interface {
	Alloc(sz int) ([]byte, error)
	Free([]byte)
}

type DefaultAllocator struct{}

func (alloc *DefaultAllocator) Alloc(sz int) ([]byte, error) {
	return make([]byte, sz), nil
}

func (alloc *DefaultAllocator) Free(bytes []byte) {}

// FailAfter is a BytesAllocator that serves the first N allocations
// normally then returns ErrOOM, used to test every scratch-allocation
// failure path without a real memory-exhaustion harness.
type FailAfter struct {
	Remaining int
}

func (alloc *FailAfter) Alloc(sz int) ([]byte, error) {
	if alloc.Remaining <= 0 {
		return nil, ErrOOM
	}
	alloc.Remaining--
	return make([]byte, sz), nil
}

func (alloc *FailAfter) Free(bytes []byte) {}

var GAlloc BytesAllocator = &DefaultAllocator{}
