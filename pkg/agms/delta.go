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

// DeltaVector records the cells a single stream update touched: one entry
// per sketch row, with Index strictly increasing (each row occupies a
// disjoint stride of the flattened sketch, so per-row cell indices are
// already ordered). Safe zones use this to update their state incrementally
// instead of recomputing from the full sketch.
type DeltaVector struct {
	Index []IndexType
	XOld  []float64
	XNew  []float64
}

// IncrementalSketch wraps a Sketch with scratch buffers so that successive
// Update calls can report a DeltaVector without reallocating.
type IncrementalSketch struct {
	Sk    *Sketch
	Delta DeltaVector

	idx  []IndexType
	mask []bool
}

// NewIncrementalSketch allocates a zero sketch and its update scratch
// space for the given projection.
func NewIncrementalSketch(proj Projection) *IncrementalSketch {
	d := proj.Depth()
	return &IncrementalSketch{
		Sk:   NewSketch(proj),
		idx:  make([]IndexType, d),
		mask: make([]bool, d),
		Delta: DeltaVector{
			Index: make([]IndexType, d),
			XOld:  make([]float64, d),
			XNew:  make([]float64, d),
		},
	}
}

// Update applies a signed frequency update for key and returns the
// DeltaVector describing the change, valid until the next call to Update.
func (u *IncrementalSketch) Update(key KeyType, freq float64) DeltaVector {
	u.Sk.Proj.UpdateIndex(key, u.idx)
	u.Sk.Proj.UpdateMask(key, u.mask)
	copy(u.Delta.Index, u.idx)
	for d, i := range u.idx {
		old := u.Sk.Vec[i]
		var next float64
		if u.mask[d] {
			next = old + freq
		} else {
			next = old - freq
		}
		u.Delta.XOld[d] = old
		u.Delta.XNew[d] = next
		u.Sk.Vec[i] = next
	}
	return u.Delta
}

// Insert is Update with freq=1.
func (u *IncrementalSketch) Insert(key KeyType) DeltaVector { return u.Update(key, 1.0) }

// Erase is Update with freq=-1.
func (u *IncrementalSketch) Erase(key KeyType) DeltaVector { return u.Update(key, -1.0) }

// IncrementalNorm2 maintains a running per-row squared norm of a sketch,
// updated from each IncrementalSketch.Update call without rescanning the
// whole row.
type IncrementalNorm2 struct {
	U        *IncrementalSketch
	CurNorm2 []float64 // per depth row
}

// NewIncrementalNorm2 seeds the running per-row norms from u's current
// sketch contents.
func NewIncrementalNorm2(u *IncrementalSketch) *IncrementalNorm2 {
	return &IncrementalNorm2{U: u, CurNorm2: u.Sk.RowNormsSquared()}
}

// Update must be called once, immediately after u.Update has applied a
// delta to the sketch, to keep CurNorm2 in sync:
// cur_norm2 += 2*delta*S' - delta^2, where S' is the post-update cell value.
func (n *IncrementalNorm2) Update() {
	for d := range n.CurNorm2 {
		delta := n.U.Delta.XNew[d] - n.U.Delta.XOld[d]
		sPrime := n.U.Delta.XNew[d]
		n.CurNorm2[d] += 2*delta*sPrime - delta*delta
	}
}

// Estimate returns the median-of-rows squared-norm estimate.
func (n *IncrementalNorm2) Estimate() float64 { return EstimateNorm2(n.CurNorm2) }

// IncrementalProd maintains a running per-row inner product between two
// compatible sketches.
type IncrementalProd struct {
	U1, U2  *IncrementalSketch
	CurProd []float64 // per depth row
}

// NewIncrementalProd seeds the running per-row dot products from u1 and
// u2's current sketch contents.
func NewIncrementalProd(u1, u2 *IncrementalSketch) *IncrementalProd {
	if !u1.Sk.Compatible(u2.Sk) {
		panic("agms: incompatible sketches in NewIncrementalProd")
	}
	return &IncrementalProd{U1: u1, U2: u2, CurProd: RowDot(u1.Sk, u2.Sk)}
}

// UpdateLHS must be called immediately after U1.Update.
func (p *IncrementalProd) UpdateLHS() { p.updateFrom(p.U1, p.U2) }

// UpdateRHS must be called immediately after U2.Update.
func (p *IncrementalProd) UpdateRHS() { p.updateFrom(p.U2, p.U1) }

func (p *IncrementalProd) updateFrom(moved, other *IncrementalSketch) {
	for d := range p.CurProd {
		delta := moved.Delta.XNew[d] - moved.Delta.XOld[d]
		p.CurProd[d] += delta * other.Sk.Vec[moved.Delta.Index[d]]
	}
}

// Estimate returns the median-of-rows inner-product estimate.
func (p *IncrementalProd) Estimate() float64 { return EstimateProd(p.CurProd) }
