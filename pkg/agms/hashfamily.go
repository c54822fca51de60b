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

// Package agms implements AGMS (Alon-Gibbons-Matias-Szegedy) sketches: the
// random linear projection used to approximate self-join and inner-product
// aggregates over a key-value stream.
package agms

import (
	"math/rand"
	"sync"
)

// KeyType is the type of stream keys hashed into sketch cells.
type KeyType = uint64

// IndexType indexes a flattened D*L sketch vector.
type IndexType = uint64

// HashFamily holds the six seed arrays used to derive, per depth row d, a
// uniform index hash and a four-wise independent sign bit. Depth rows are
// independent; width is supplied separately by a Projection.
type HashFamily struct {
	depth int
	f     [6][]int64
}

// NewHashFamily builds a hash family of the given depth, seeding its six
// coefficient arrays from a dedicated PRNG so that runs with the same seed
// reproduce identical sketches.
func NewHashFamily(depth int, seed int64) *HashFamily {
	if depth <= 0 {
		panic("agms: hash family depth must be positive")
	}
	r := rand.New(rand.NewSource(seed))
	hf := &HashFamily{depth: depth}
	for i := 0; i < 6; i++ {
		hf.f[i] = make([]int64, depth)
		for d := 0; d < depth; d++ {
			hf.f[i][d] = r.Int63()
		}
	}
	return hf
}

// Depth returns the number of independent hash rows in the family.
func (hf *HashFamily) Depth() int { return hf.depth }

// hash31 is the 31-bit pseudo-random function shared by hash and fourwise.
func hash31(a, b, x int64) int64 {
	result := a*x + b
	return ((result >> 31) ^ result) & 0x7fffffff
}

// Hash returns the row-d hash of key x, used to select the sketch column.
func (hf *HashFamily) Hash(d int, x KeyType) int64 {
	return hash31(hf.f[0][d], hf.f[1][d], int64(x))
}

// FourWise returns a four-wise independent sign bit for row d and key x,
// used to decide whether an update is added or subtracted from its cell.
func (hf *HashFamily) FourWise(d int, x KeyType) bool {
	v := int64(x)
	h := hash31(hash31(hash31(v, hf.f[2][d], hf.f[3][d]), v, hf.f[4][d]), v, hf.f[5][d])
	return h&(1<<15) != 0
}

// hashFamilyCache caches hash families by depth so that every Projection of
// a given depth in a process shares identical random coefficients.
type hashFamilyCache struct {
	mu   sync.Mutex
	seed int64
	byD  map[int]*HashFamily
}

// NewHashFamilyCache returns a depth-keyed cache seeded from seed.
func NewHashFamilyCache(seed int64) *hashFamilyCache {
	return &hashFamilyCache{seed: seed, byD: make(map[int]*HashFamily)}
}

// Get returns the cached hash family for depth, constructing one on first
// use.
func (c *hashFamilyCache) Get(depth int) *HashFamily {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hf, ok := c.byD[depth]; ok {
		return hf
	}
	hf := NewHashFamily(depth, c.seed+int64(depth))
	c.byD[depth] = hf
	return hf
}
