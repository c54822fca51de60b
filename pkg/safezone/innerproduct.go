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

// InnerProduct is the safe zone for X1.X2 {>=,<=} T, where the state
// vector is the concatenation (X1,X2). It transforms the bilinear
// condition into "sum minus difference of squares" and delegates to a
// Bilinear2D over the aggregate quantities x2=dot(x,xihat), y2=||y||,
// x=X1+X2, y=X1-X2 (swapped and negated for the <= case).
type InnerProduct struct {
	Proj   agms.Projection
	E      []float64 // reference state, length 2n
	Geq    bool
	T      float64
	Xihat  []float64 // reference direction, length n
	Sqdiff *Bilinear2D

	n int
}

// NewInnerProduct builds the inner-product safe zone referenced to E
// (length 2n, the concatenation of the two sketches).
func NewInnerProduct(proj agms.Projection, E []float64, geq bool, T float64) *InnerProduct {
	n := len(E) / 2
	xi := make([]float64, n)
	psi := make([]float64, n)
	for i := 0; i < n; i++ {
		xi[i] = E[i] + E[n+i]
		psi[i] = E[i] - E[n+i]
	}
	if !geq {
		xi, psi = psi, xi
		T = -T
	}

	normXi := vecNorm(xi)
	normPsi := vecNorm(psi)
	sqdiff := NewBilinear2D(normXi, normPsi, 4*T)

	var xihat []float64
	switch {
	case normXi > 0:
		xihat = make([]float64, n)
		for i := range xi {
			xihat[i] = xi[i] / normXi
		}
	case T < 0:
		xihat = make([]float64, n)
	default:
		v := math.Sqrt(2.0 / float64(2*n))
		xihat = make([]float64, n)
		for i := range xihat {
			xihat[i] = v
		}
	}

	return &InnerProduct{Proj: proj, E: E, Geq: geq, T: T, Xihat: xihat, Sqdiff: sqdiff, n: n}
}

func vecNorm(v []float64) float64 { return math.Sqrt(dot(v, v)) }

// splitXY returns x=X1+X2, y=X1-X2 (swapped for the <= case).
func (ip *InnerProduct) splitXY(X []float64) (x, y []float64) {
	n := ip.n
	x = make([]float64, n)
	y = make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = X[i] + X[n+i]
		y[i] = X[i] - X[n+i]
	}
	if !ip.Geq {
		x, y = y, x
	}
	return
}

// Zeta recomputes from scratch.
func (ip *InnerProduct) Zeta(U []float64) float64 {
	X := addVec(ip.E, U)
	x, y := ip.splitXY(X)
	x2 := dot(x, ip.Xihat)
	y2 := vecNorm(y)
	return ip.Sqdiff.Eval(x2, y2) * math.Sqrt(0.5)
}

type innerProdIncState struct {
	x, y []float64 // current x=X1+X2, y=X1-X2 (post-swap), length n
	x2   float64
	y2sq float64
}

// NewIncState seeds the running x,y vectors and x2/y2 scalars from U.
func (ip *InnerProduct) NewIncState(U []float64) interface{} {
	X := addVec(ip.E, U)
	x, y := ip.splitXY(X)
	return &innerProdIncState{x: x, y: y, x2: dot(x, ip.Xihat), y2sq: dot(y, y)}
}

// ZetaInc applies delta (over the full 2n-length U) to the running state.
func (ip *InnerProduct) ZetaInc(state interface{}, delta agms.DeltaVector) float64 {
	st := state.(*innerProdIncState)
	n := ip.n
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
		if !ip.Geq {
			dx, dy = dy, dx
		}

		st.x[pos] += dx
		st.x2 += dx * ip.Xihat[pos]

		yOld := st.y[pos]
		yNew := yOld + dy
		st.y[pos] = yNew
		st.y2sq += 2*dy*yNew - dy*dy
	}
	y2 := math.Sqrt(math.Max(0, st.y2sq))
	return ip.Sqdiff.Eval(st.x2, y2) * math.Sqrt(0.5)
}

// ZetaSize is the descriptor cost of the cached tangent-plane scalars.
func (ip *InnerProduct) ZetaSize() int { return 2 }
