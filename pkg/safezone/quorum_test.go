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

package safezone

import (
	"math/rand"
	"testing"
)

func TestQuorum_PositiveAtReferencePoint(t *testing.T) {
	zE := []float64{13, 17, 26, 11, -33, 31, 52}
	for _, eikonal := range []bool{false, true} {
		q := NewQuorum(zE, 4, eikonal)
		if v := q.Zeta(zE); v < -1e-9 {
			t.Fatalf("eikonal=%v: expected zeta(zE) >= 0, got %v", eikonal, v)
		}
	}
}

func TestQuorum_PanicsWhenLegalSetTooSmall(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for under-provisioned quorum")
		}
	}()
	NewQuorum([]float64{1, -1, -1, -1}, 3, false)
}

// TestQuorum_EikonalAndNonEikonalAgreeOnSign checks the two composers agree
// on admissibility (sign of zeta) across random test vectors, matching the
// reference zE=[13,17,26,11,-33,31,52], k=4.
func TestQuorum_EikonalAndNonEikonalAgreeOnSign(t *testing.T) {
	zE := []float64{13, 17, 26, 11, -33, 31, 52}
	fast := NewQuorum(zE, 4, false)
	exact := NewQuorum(zE, 4, true)

	rng := rand.New(rand.NewSource(42))
	mismatches := 0
	const trials = 5000
	for i := 0; i < trials; i++ {
		zX := make([]float64, len(zE))
		for j := range zX {
			zX[j] = rng.Float64()*100 - 50
		}
		vFast := fast.Zeta(zX)
		vExact := exact.Zeta(zX)
		if (vFast >= 0) != (vExact >= 0) {
			mismatches++
		}
	}
	if mismatches > 0 {
		t.Fatalf("eikonal/non-eikonal disagreed on admissibility sign in %d/%d trials", mismatches, trials)
	}
}

func TestQuorum_NextCombination(t *testing.T) {
	idx := []int{0, 1, 2}
	count := 1
	for nextCombination(idx, 5) {
		count++
	}
	// C(5,3) = 10
	if count != 10 {
		t.Fatalf("expected 10 combinations, got %d", count)
	}
}
