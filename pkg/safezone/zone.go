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

// Package safezone implements the geometric safe-zone predicates of the
// Geometric Method family of protocols: scalar functions zeta such that
// zeta(U) >= 0 at every site implies the monitored aggregate over the
// global state E+U lies in an admissible region.
//
// Rather than the virtual-dispatch hierarchy of the original C++, safe
// zones here are a closed set of concrete types, each satisfying Func.
// The incremental state a Func needs is opaque to callers and allocated
// through NewIncState, matching the "tagged variants with per-variant
// incremental state" design.
package safezone

import (
	"math"

	"geomsim/pkg/agms"
)

// Func is the common safe-zone contract. U is always a drift relative to
// the reference state the Func was built against (E); ZetaSize is the
// descriptor cost (in floats) charged when this safe zone is transmitted.
type Func interface {
	Zeta(U []float64) float64
	NewIncState(U []float64) interface{}
	ZetaInc(state interface{}, delta agms.DeltaVector) float64
	ZetaSize() int
}

// Ball is the cheap "radial" safe zone zeta(U) = r - ||U||_2, used for
// naive mode and as the FGM/FRGM cheap alternative to a full safe zone.
type Ball struct {
	R float64
}

// Zeta returns r - ||U||_2.
func (b Ball) Zeta(U []float64) float64 {
	return b.R - norm2(U)
}

// ballIncState tracks the running squared norm of U so repeated deltas
// don't require rescanning the whole vector.
type ballIncState struct {
	norm2 float64
}

// NewIncState seeds the running norm from the initial drift.
func (b Ball) NewIncState(U []float64) interface{} {
	return &ballIncState{norm2: dot(U, U)}
}

// ZetaInc applies delta (over the same U the state was built from) and
// returns the updated zeta.
func (b Ball) ZetaInc(state interface{}, delta agms.DeltaVector) float64 {
	st := state.(*ballIncState)
	for i, idx := range delta.Index {
		old, next := delta.XOld[i], delta.XNew[i]
		st.norm2 += 2*(next-old)*next - (next-old)*(next-old)
		_ = idx
	}
	if st.norm2 < 0 {
		st.norm2 = 0
	}
	return b.R - math.Sqrt(st.norm2)
}

// ZetaSize returns the byte-cost descriptor (one scalar: the radius).
func (Ball) ZetaSize() int { return 1 }

func norm2(v []float64) float64 { return math.Sqrt(dot(v, v)) }

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func addVec(e, u []float64) []float64 {
	out := make([]float64, len(e))
	for i := range e {
		out[i] = e[i] + u[i]
	}
	return out
}
