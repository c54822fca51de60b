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

package stream

import (
	"math/rand"

	"geomsim/pkg/agms"
)

// UniformGenerator draws stream, source, and key uniformly at random,
// the simplest of the synthetic sources: every key is equally likely to
// be touched, every site equally likely to originate the touch.
type UniformGenerator struct {
	rng    *rand.Rand
	seed   int64
	maxSID int
	maxHID int
	maxKey agms.KeyType
	now    uint64
}

// NewUniformGenerator builds a generator over streams 0..maxSID-1,
// sources (sites) 0..maxHID-1, and keys 0..maxKey-1, seeded
// deterministically for reproducible runs.
func NewUniformGenerator(seed int64, maxSID, maxHID int, maxKey agms.KeyType) *UniformGenerator {
	g := &UniformGenerator{seed: seed, maxSID: maxSID, maxHID: maxHID, maxKey: maxKey}
	g.Reset()
	return g
}

// Reset rewinds the generator to its initial seed and clock, producing
// the identical sequence of records a fresh generator would.
func (g *UniformGenerator) Reset() {
	g.rng = rand.New(rand.NewSource(g.seed))
	g.now = 0
}

// Next produces the next record: a uniformly random stream, source, and
// key, a unit insertion, and a strictly increasing timestamp.
func (g *UniformGenerator) Next() Record {
	g.now++
	return Record{
		StreamID: g.rng.Intn(g.maxSID),
		SourceID: g.rng.Intn(g.maxHID),
		Key:      agms.KeyType(g.rng.Int63n(int64(g.maxKey))),
		Upd:      1,
		TS:       g.now,
	}
}

// NextN returns a batch of n consecutive records; equivalent to calling
// Next n times, but avoids a function-call-per-record loop at call
// sites that just want a slice.
func (g *UniformGenerator) NextN(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = g.Next()
	}
	return out
}
