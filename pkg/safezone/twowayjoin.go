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

// twoWayRowBound is one side (lower or upper) of the two-way join safe
// zone. It polarizes the per-row pair (X1_row, X2_row) into x=X1+X2,
// y=X1-X2 (swapped for the upper bound), reduces each row to the scalar
// pair (||x_row||, ||y_row||), and evaluates a per-row Bilinear2D safe
// zone; rows are composed with a majority quorum exactly as in
// SelfJoinUpper/SelfJoinLower.
type twoWayRowBound struct {
	proj     agms.Projection
	T        float64
	swap     bool
	rowZones []*Bilinear2D
	quorum   *Quorum
}

// newTwoWayRowBound builds one bound referenced to E (length 2n, the
// concatenation of the two sketches). T is the already sign-adjusted
// threshold (4*T_low for the lower bound, -4*T_high for the upper,
// applied internally).
func newTwoWayRowBound(proj agms.Projection, E []float64, T float64, swap bool, eikonal bool) *twoWayRowBound {
	d, l := proj.Depth(), proj.Width()
	n := d * l
	rowZones := make([]*Bilinear2D, d)
	refZeta := make([]float64, d)
	off := 0
	for row := 0; row < d; row++ {
		var sx, sy float64
		for i := 0; i < l; i++ {
			e1 := E[off+i]
			e2 := E[n+off+i]
			x := e1 + e2
			y := e1 - e2
			if swap {
				x, y = y, x
			}
			sx += x * x
			sy += y * y
		}
		xiNorm := math.Sqrt(sx)
		psiNorm := math.Sqrt(sy)
		bz := NewBilinear2D(xiNorm, psiNorm, 4*T)
		rowZones[row] = bz
		refZeta[row] = bz.Eval(xiNorm, psiNorm)
		off += l
	}
	k := selfJoinQuorumK(d)
	return &twoWayRowBound{proj: proj, T: T, swap: swap, rowZones: rowZones, quorum: NewQuorum(refZeta, k, eikonal)}
}

// rowVals computes the per-row bilinear value from full state X (= E+U).
func (b *twoWayRowBound) rowVals(X []float64) []float64 {
	d, l := b.proj.Depth(), b.proj.Width()
	n := d * l
	out := make([]float64, d)
	off := 0
	for row := 0; row < d; row++ {
		var sx, sy float64
		for i := 0; i < l; i++ {
			e1 := X[off+i]
			e2 := X[n+off+i]
			x := e1 + e2
			y := e1 - e2
			if b.swap {
				x, y = y, x
			}
			sx += x * x
			sy += y * y
		}
		out[row] = b.rowZones[row].Eval(math.Sqrt(sx), math.Sqrt(sy))
		off += l
	}
	return out
}

// zeta recomputes this bound from scratch.
func (b *twoWayRowBound) zeta(E, U []float64) float64 {
	return b.quorum.Zeta(b.rowVals(addVec(E, U)))
}

// twoWayRowIncState tracks, per row, the running polarized vectors x,y
// and their squared norms, so a delta touching one cell only needs to
// revisit that cell's row.
type twoWayRowIncState struct {
	x, y   []float64 // length n = d*l
	sx, sy []float64 // per-row running squared norms, length d
}

func (b *twoWayRowBound) newIncState(E, U []float64) *twoWayRowIncState {
	d, l := b.proj.Depth(), b.proj.Width()
	n := d * l
	x := make([]float64, n)
	y := make([]float64, n)
	sx := make([]float64, d)
	sy := make([]float64, d)
	off := 0
	for row := 0; row < d; row++ {
		var ssx, ssy float64
		for i := 0; i < l; i++ {
			e1 := E[off+i] + U[off+i]
			e2 := E[n+off+i] + U[n+off+i]
			xv := e1 + e2
			yv := e1 - e2
			if b.swap {
				xv, yv = yv, xv
			}
			x[off+i] = xv
			y[off+i] = yv
			ssx += xv * xv
			ssy += yv * yv
		}
		sx[row] = ssx
		sy[row] = ssy
		off += l
	}
	return &twoWayRowIncState{x: x, y: y, sx: sx, sy: sy}
}

// applyDelta updates the running vectors/norms given a delta over the
// full 2n-length drift U (E fixed).
func (b *twoWayRowBound) applyDelta(st *twoWayRowIncState, delta agms.DeltaVector) {
	n := b.proj.Depth() * b.proj.Width()
	l := b.proj.Width()
	for i, idx := range delta.Index {
		d := delta.XNew[i] - delta.XOld[i]
		var pos int
		var dx, dy float64
		if int(idx) < n {
			pos = int(idx)
			dx, dy = d, d
		} else {
			pos = int(idx) - n
			dx, dy = d, -d
		}
		if b.swap {
			dx, dy = dy, dx
		}
		row := pos / l

		xOld := st.x[pos]
		xNew := xOld + dx
		st.x[pos] = xNew
		st.sx[row] += 2*dx*xNew - dx*dx

		yOld := st.y[pos]
		yNew := yOld + dy
		st.y[pos] = yNew
		st.sy[row] += 2*dy*yNew - dy*dy
	}
}

func (b *twoWayRowBound) zetaFromState(st *twoWayRowIncState) float64 {
	d := b.proj.Depth()
	rows := make([]float64, d)
	for row := 0; row < d; row++ {
		sxv := math.Max(0, st.sx[row])
		syv := math.Max(0, st.sy[row])
		rows[row] = b.rowZones[row].Eval(math.Sqrt(sxv), math.Sqrt(syv))
	}
	return b.quorum.Zeta(rows)
}

// TwoWayJoin is the safe zone for T_low <= med_row{X1_row . X2_row} <=
// T_high, built from the polarization identity
// X1_row.X2_row = (||x_row||^2 - ||y_row||^2) / 4, x=X1+X2, y=X1-X2. The
// lower bound applies directly; the upper bound swaps x and y and
// negates T, per the bilinear safe zone's >= convention.
type TwoWayJoin struct {
	Proj  agms.Projection
	E     []float64
	Lower *twoWayRowBound
	Upper *twoWayRowBound
}

// NewTwoWayJoin builds the two-sided two-way-join safe zone referenced
// to E (length 2n, concatenation of the two sketches).
func NewTwoWayJoin(proj agms.Projection, E []float64, tLow, tHigh float64, eikonal bool) *TwoWayJoin {
	return &TwoWayJoin{
		Proj:  proj,
		E:     E,
		Lower: newTwoWayRowBound(proj, E, tLow, false, eikonal),
		Upper: newTwoWayRowBound(proj, E, -tHigh, true, eikonal),
	}
}

// Zeta recomputes both bounds from scratch and returns their minimum.
func (z *TwoWayJoin) Zeta(U []float64) float64 {
	return math.Min(z.Lower.zeta(z.E, U), z.Upper.zeta(z.E, U))
}

type twoWayJoinIncState struct {
	lower, upper *twoWayRowIncState
}

// NewIncState seeds both bounds' running per-row vectors from U.
func (z *TwoWayJoin) NewIncState(U []float64) interface{} {
	return &twoWayJoinIncState{
		lower: z.Lower.newIncState(z.E, U),
		upper: z.Upper.newIncState(z.E, U),
	}
}

// ZetaInc applies delta to both bounds' state and returns their minimum.
func (z *TwoWayJoin) ZetaInc(state interface{}, delta agms.DeltaVector) float64 {
	st := state.(*twoWayJoinIncState)
	z.Lower.applyDelta(st.lower, delta)
	z.Upper.applyDelta(st.upper, delta)
	return math.Min(z.Lower.zetaFromState(st.lower), z.Upper.zetaFromState(st.upper))
}

// ZetaSize is one float per depth row, per bound.
func (z *TwoWayJoin) ZetaSize() int { return 2 * z.Proj.Depth() }
