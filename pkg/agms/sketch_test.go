// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agms

import (
	"math"
	"testing"
)

func TestProjection_IndexWithinBounds(t *testing.T) {
	proj := NewProjection(5, 17, 42)
	idx := make([]IndexType, proj.Depth())
	mask := make([]bool, proj.Depth())
	for key := KeyType(0); key < 500; key++ {
		proj.UpdateIndex(key, idx)
		proj.UpdateMask(key, mask)
		for d, i := range idx {
			lo := IndexType(d * proj.Width())
			hi := lo + IndexType(proj.Width())
			if i < lo || i >= hi {
				t.Fatalf("row %d index %d out of bounds [%d,%d)", d, i, lo, hi)
			}
		}
	}
}

func TestProjection_Equal(t *testing.T) {
	p1 := NewProjection(3, 10, 1)
	p2 := Projection{HF: p1.HF, L: p1.L}
	p3 := NewProjection(3, 10, 2)

	if !p1.Equal(p2) {
		t.Error("expected same hash family + width to be equal")
	}
	if p1.Equal(p3) {
		t.Error("expected distinct hash families to be unequal")
	}
}

func TestSketch_NormSquaredMatchesBruteForce(t *testing.T) {
	proj := NewProjection(5, 101, 7)
	sk := NewSketch(proj)
	idx := make([]IndexType, proj.Depth())
	mask := make([]bool, proj.Depth())

	keys := []KeyType{1, 2, 2, 3, 3, 3, 10, 20}
	for _, k := range keys {
		sk.Update(k, 1.0, idx, mask)
	}

	want := 0.0
	for _, v := range sk.Vec {
		want += v * v
	}
	if got := sk.NormSquared(); math.Abs(got-want) > 1e-9 {
		t.Errorf("NormSquared() = %v, want %v", got, want)
	}
}

func TestSketch_EraseCancelsInsert(t *testing.T) {
	proj := NewProjection(4, 50, 3)
	sk := NewSketch(proj)
	idx := make([]IndexType, proj.Depth())
	mask := make([]bool, proj.Depth())

	sk.Insert(99, idx, mask)
	sk.Erase(99, idx, mask)

	for i, v := range sk.Vec {
		if v != 0 {
			t.Fatalf("cell %d = %v after insert+erase, want 0", i, v)
		}
	}
}

func TestEstimateNorm2_MedianOfRows(t *testing.T) {
	rows := []float64{5, 1, 3, 9, 2} // median = 3
	if got := EstimateNorm2(rows); got != 3 {
		t.Errorf("EstimateNorm2() = %v, want 3", got)
	}
}
