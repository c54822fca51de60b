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

import "math"

// Projection describes a D x L AGMS sketch shape: a hash family of depth D
// and a column width L. Two sketches are compatible (summable, comparable)
// iff they share an equal Projection.
type Projection struct {
	HF *HashFamily
	L  int // width
}

// NewProjection builds a projection of depth x L, constructing a fresh hash
// family seeded from seed.
func NewProjection(depth, width int, seed int64) Projection {
	return Projection{HF: NewHashFamily(depth, seed), L: width}
}

// Depth returns the number of sketch rows.
func (p Projection) Depth() int { return p.HF.Depth() }

// Width returns the number of columns per row.
func (p Projection) Width() int { return p.L }

// Size returns the flattened length of a sketch with this projection.
func (p Projection) Size() int { return p.Depth() * p.L }

// Equal reports whether p and q address the same hash family and width,
// i.e. whether sketches built from them are compatible.
func (p Projection) Equal(q Projection) bool {
	return p.HF == q.HF && p.L == q.L
}

// UpdateIndex fills idx[d] with the flattened cell index that key maps to
// in row d, for d in [0, Depth()).
func (p Projection) UpdateIndex(key KeyType, idx []IndexType) {
	if len(idx) != p.Depth() {
		panic("agms: index buffer size mismatch")
	}
	stride := 0
	for d := 0; d < p.Depth(); d++ {
		h := p.HF.Hash(d, key)
		col := int(h % int64(p.L))
		if col < 0 {
			col += p.L
		}
		idx[d] = IndexType(stride + col)
		stride += p.L
	}
}

// UpdateMask fills mask[d] with the four-wise independent sign bit for key
// in row d.
func (p Projection) UpdateMask(key KeyType, mask []bool) {
	if len(mask) != p.Depth() {
		panic("agms: mask buffer size mismatch")
	}
	for d := 0; d < p.Depth(); d++ {
		mask[d] = p.HF.FourWise(d, key)
	}
}

// Epsilon returns the sketch-performance error bound of Alon et al.
func (p Projection) Epsilon() float64 { return 4. / math.Sqrt(float64(p.L)) }

// ProbFailure returns the sketch-performance failure probability of Alon et
// al.
func (p Projection) ProbFailure() float64 {
	return math.Pow(1./math.Sqrt2, float64(p.Depth()))
}
