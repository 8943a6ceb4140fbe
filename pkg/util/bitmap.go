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

// Bitmap is a packed validity mask, one bit per row: 1 means the row
// passes (is selected / is valid), 0 means it is excluded. The engine
// uses it for the per-group validity of aggregate results
// (engine.Result.Valid); the row selection mask is a plain []bool
// (engine.Mask). A nil/invalid Bitmap means "everything valid",
// mirroring how the teacher vector framework treats a missing null
// mask as all-valid.
type Bitmap struct {
	Bits []uint8
}

func EntryCount(cnt int) int {
	return (cnt + 7) / 8
}

func (bm *Bitmap) Init(count int) error {
	cnt := EntryCount(count)
	bits, err := GAlloc.Alloc(cnt)
	if err != nil {
		return err
	}
	bm.Bits = bits
	for i := range bm.Bits {
		bm.Bits[i] = 0xFF
	}
	return nil
}

func (bm *Bitmap) Invalid() bool {
	return len(bm.Bits) == 0
}

// AllValid reports whether the bitmap carries no mask at all, i.e.
// every row is implicitly selected.
func (bm *Bitmap) AllValid() bool {
	return bm.Invalid()
}

func GetEntryIndex(idx uint64) (uint64, uint64) {
	return idx / 8, idx % 8
}

func EntryIsSet(e uint8, pos uint64) bool {
	return e&(1<<pos) != 0
}

func (bm *Bitmap) RowIsValid(idx uint64) bool {
	if bm.Invalid() {
		return true
	}
	eIdx, pos := GetEntryIndex(idx)
	return EntryIsSet(bm.Bits[eIdx], pos)
}

func (bm *Bitmap) SetValid(ridx uint64) {
	if bm.Invalid() {
		return
	}
	eIdx, pos := GetEntryIndex(ridx)
	bm.Bits[eIdx] |= 1 << pos
}

func (bm *Bitmap) SetInvalid(ridx uint64) {
	if bm.Invalid() {
		return
	}
	eIdx, pos := GetEntryIndex(ridx)
	bm.Bits[eIdx] &= ^(1 << pos)
}

func (bm *Bitmap) Set(ridx uint64, valid bool) {
	if valid {
		bm.SetValid(ridx)
	} else {
		bm.SetInvalid(ridx)
	}
}

func (bm *Bitmap) SetAllValid(cnt int) error {
	if bm.Invalid() {
		if err := bm.Init(cnt); err != nil {
			return err
		}
	}
	for i := range bm.Bits {
		bm.Bits[i] = 0xFF
	}
	return nil
}

func (bm *Bitmap) SetAllInvalid(cnt int) error {
	if bm.Invalid() {
		if err := bm.Init(cnt); err != nil {
			return err
		}
	}
	for i := range bm.Bits {
		bm.Bits[i] = 0
	}
	return nil
}

func (bm *Bitmap) Reset() {
	bm.Bits = nil
}
