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
	"math"

	"geomsim/pkg/agms"
)

// selfJoinQuorumK is the majority quorum used by both selfjoin bounds:
// ceil(depth/2), matching the reference implementation's (depth+1)/2.
func selfJoinQuorumK(depth int) int { return (depth + 1) / 2 }

// rowNormsOf returns, per depth row, the L2 norm of X's row slice.
func rowNormsOf(proj agms.Projection, X []float64) []float64 {
	d, l := proj.Depth(), proj.Width()
	out := make([]float64, d)
	off := 0
	for row := 0; row < d; row++ {
		var sum float64
		for i := 0; i < l; i++ {
			x := X[off]
			sum += x * x
			off++
		}
		out[row] = math.Sqrt(sum)
	}
	return out
}

// selfJoinIncState is shared by SelfJoinUpper and SelfJoinLower: both only
// need the running per-row squared norm of X = E+U.
type selfJoinIncState struct {
	rowNorm2 []float64
}

func newSelfJoinIncState(proj agms.Projection, E, U []float64) *selfJoinIncState {
	X := addVec(E, U)
	d, l := proj.Depth(), proj.Width()
	rn := make([]float64, d)
	off := 0
	for row := 0; row < d; row++ {
		var sum float64
		for i := 0; i < l; i++ {
			x := X[off]
			sum += x * x
			off++
		}
		rn[row] = sum
	}
	return &selfJoinIncState{rowNorm2: rn}
}

// applyDelta updates the running per-row squared norm given a delta over U
// (E fixed): cur_norm2 += 2*d*X' - d^2, X' the post-update cell value.
func (st *selfJoinIncState) applyDelta(proj agms.Projection, E []float64, delta agms.DeltaVector) {
	width := proj.Width()
	for i, idx := range delta.Index {
		row := int(idx) / width
		d := delta.XNew[i] - delta.XOld[i]
		xNew := E[idx] + delta.XNew[i]
		st.rowNorm2[row] += 2*d*xNew - d*d
		if st.rowNorm2[row] < 0 {
			st.rowNorm2[row] = 0
		}
	}
}

// SelfJoinUpper is the safe zone for med{||X_i||^2} <= T:
// zeta_i(X) = sqrt(T) - ||X_i||, composed via a majority quorum.
type SelfJoinUpper struct {
	Proj   agms.Projection
	E      []float64
	T      float64
	quorum *Quorum
}

// NewSelfJoinUpper builds the upper-bound safe zone referenced to E.
func NewSelfJoinUpper(proj agms.Projection, E []float64, T float64, eikonal bool) *SelfJoinUpper {
	z := &SelfJoinUpper{Proj: proj, E: E, T: T}
	z.quorum = NewQuorum(z.rowZetas(E), selfJoinQuorumK(proj.Depth()), eikonal)
	return z
}

func (z *SelfJoinUpper) rowZetas(X []float64) []float64 {
	sqrtT := math.Sqrt(z.T)
	norms := rowNormsOf(z.Proj, X)
	out := make([]float64, len(norms))
	for i, n := range norms {
		out[i] = sqrtT - n
	}
	return out
}

// Zeta recomputes from scratch.
func (z *SelfJoinUpper) Zeta(U []float64) float64 {
	return z.quorum.Zeta(z.rowZetas(addVec(z.E, U)))
}

// NewIncState seeds incremental per-row norms from U.
func (z *SelfJoinUpper) NewIncState(U []float64) interface{} {
	return newSelfJoinIncState(z.Proj, z.E, U)
}

// ZetaInc applies delta to the incremental state and recomposes.
func (z *SelfJoinUpper) ZetaInc(state interface{}, delta agms.DeltaVector) float64 {
	st := state.(*selfJoinIncState)
	st.applyDelta(z.Proj, z.E, delta)
	sqrtT := math.Sqrt(z.T)
	rows := make([]float64, len(st.rowNorm2))
	for i, rn := range st.rowNorm2 {
		rows[i] = sqrtT - math.Sqrt(rn)
	}
	return z.quorum.Zeta(rows)
}

// ZetaSize is one float per depth row.
func (z *SelfJoinUpper) ZetaSize() int { return z.Proj.Depth() }

// SelfJoinLower is the safe zone for med{||X_i||^2} >= T:
// zeta_i(X) = X_i . Ehat_i - sqrt(T), where Ehat is E normalized row-wise.
// If T <= 0 the zone is unconstrained (+Inf).
type SelfJoinLower struct {
	Proj   agms.Projection
	E      []float64
	T      float64
	Ehat   []float64 // row-normalized E; nil if T<=0
	quorum *Quorum   // nil if T<=0
}

// NewSelfJoinLower builds the lower-bound safe zone referenced to E.
func NewSelfJoinLower(proj agms.Projection, E []float64, T float64, eikonal bool) *SelfJoinLower {
	z := &SelfJoinLower{Proj: proj, E: E, T: T}
	if T <= 0 {
		return z
	}
	z.Ehat = normalizeRows(proj, E)
	z.quorum = NewQuorum(z.rowZetas(E), selfJoinQuorumK(proj.Depth()), eikonal)
	return z
}

func normalizeRows(proj agms.Projection, X []float64) []float64 {
	d, l := proj.Depth(), proj.Width()
	out := make([]float64, len(X))
	norms := rowNormsOf(proj, X)
	off := 0
	for row := 0; row < d; row++ {
		n := norms[row]
		for i := 0; i < l; i++ {
			if n > 0 {
				out[off] = X[off] / n
			}
			off++
		}
	}
	return out
}

func (z *SelfJoinLower) rowZetas(X []float64) []float64 {
	d, l := z.Proj.Depth(), z.Proj.Width()
	sqrtT := math.Sqrt(z.T)
	out := make([]float64, d)
	off := 0
	for row := 0; row < d; row++ {
		var dotv float64
		for i := 0; i < l; i++ {
			dotv += X[off] * z.Ehat[off]
			off++
		}
		out[row] = dotv - sqrtT
	}
	return out
}

// Zeta returns +Inf when T<=0 (constraint vacuously satisfied).
func (z *SelfJoinLower) Zeta(U []float64) float64 {
	if z.T <= 0 {
		return math.Inf(1)
	}
	return z.quorum.Zeta(z.rowZetas(addVec(z.E, U)))
}

type selfJoinLowerIncState struct {
	dotE []float64 // per row: running X_i . Ehat_i
}

// NewIncState seeds the running per-row dot products with Ehat.
func (z *SelfJoinLower) NewIncState(U []float64) interface{} {
	if z.T <= 0 {
		return &selfJoinLowerIncState{}
	}
	X := addVec(z.E, U)
	d, l := z.Proj.Depth(), z.Proj.Width()
	dotE := make([]float64, d)
	off := 0
	for row := 0; row < d; row++ {
		var sum float64
		for i := 0; i < l; i++ {
			sum += X[off] * z.Ehat[off]
			off++
		}
		dotE[row] = sum
	}
	return &selfJoinLowerIncState{dotE: dotE}
}

// ZetaInc applies delta to the running dot products and recomposes.
func (z *SelfJoinLower) ZetaInc(state interface{}, delta agms.DeltaVector) float64 {
	if z.T <= 0 {
		return math.Inf(1)
	}
	st := state.(*selfJoinLowerIncState)
	width := z.Proj.Width()
	sqrtT := math.Sqrt(z.T)
	for i, idx := range delta.Index {
		row := int(idx) / width
		d := delta.XNew[i] - delta.XOld[i]
		st.dotE[row] += d * z.Ehat[idx]
	}
	rows := make([]float64, len(st.dotE))
	for i, v := range st.dotE {
		rows[i] = v - sqrtT
	}
	return z.quorum.Zeta(rows)
}

// ZetaSize is one float per depth row.
func (z *SelfJoinLower) ZetaSize() int { return z.Proj.Depth() }

// SelfJoinCombined evaluates both the upper and lower self-join safe
// zones and returns their minimum, as required for a two-sided admissible
// range [T_low, T_high].
type SelfJoinCombined struct {
	Upper *SelfJoinUpper
	Lower *SelfJoinLower
}

// NewSelfJoinCombined builds both bounds referenced to E.
func NewSelfJoinCombined(proj agms.Projection, E []float64, tLow, tHigh float64, eikonal bool) *SelfJoinCombined {
	return &SelfJoinCombined{
		Upper: NewSelfJoinUpper(proj, E, tHigh, eikonal),
		Lower: NewSelfJoinLower(proj, E, tLow, eikonal),
	}
}

// Zeta returns min(upper, lower).
func (z *SelfJoinCombined) Zeta(U []float64) float64 {
	return math.Min(z.Upper.Zeta(U), z.Lower.Zeta(U))
}

type selfJoinCombinedIncState struct {
	upper interface{}
	lower interface{}
}

// NewIncState bundles both bounds' incremental state.
func (z *SelfJoinCombined) NewIncState(U []float64) interface{} {
	return &selfJoinCombinedIncState{
		upper: z.Upper.NewIncState(U),
		lower: z.Lower.NewIncState(U),
	}
}

// ZetaInc applies delta to both bounds' state and returns the minimum.
func (z *SelfJoinCombined) ZetaInc(state interface{}, delta agms.DeltaVector) float64 {
	st := state.(*selfJoinCombinedIncState)
	u := z.Upper.ZetaInc(st.upper, delta)
	l := z.Lower.ZetaInc(st.lower, delta)
	return math.Min(u, l)
}

// ZetaSize sums both bounds' descriptor cost.
func (z *SelfJoinCombined) ZetaSize() int { return z.Upper.ZetaSize() + z.Lower.ZetaSize() }
