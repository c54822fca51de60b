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

// Package protocol implements the Geometric Method coordinator/node
// family: SGM (set-based), AGM (bitwise), FGM and FRGM (functional,
// cost-model-driven), sharing the same per-site drift bookkeeping and
// round lifecycle, driven synchronously by the ECA engine rather than a
// background scheduler.
package protocol

import (
	"geomsim/pkg/agms"
	"geomsim/pkg/safezone"
)

// Node tracks one monitored site's drift from the coordinator's
// reference estimate for the lifetime of a round. Its drift U is
// site-scale-invariant: every per-record delta is divided by the site
// count k before being folded in, so that summing every site's U at
// round end directly reconstructs the round's true average drift
// (ΔE = Σ U_i, no further division by k — the 1/k factor is already
// baked into each site's own bookkeeping).
type Node struct {
	ID         int
	K          int // site count, for the drift scale-invariance above
	StateSize  int // arity * sketch size
	SketchSize int

	U  []float64 // current drift, length StateSize
	DS []float64 // round-local accumulated drift, same shape as U

	Zone     safezone.Func // current safe zone: full or, under naive/cheap mode, a Ball
	IncState interface{}
	Zeta     float64
	MinZeta  float64

	UpdateCount       int
	RoundLocalUpdates int
	Rebalanced        bool
	UsingCheapZone    bool

	proj    agms.Projection
	idxBuf  []agms.IndexType
	maskBuf []bool
}

// NewNode allocates a node for a query whose drift vector has the given
// total size (arity * sketch size) over projection proj.
func NewNode(id, k, stateSize int, proj agms.Projection) *Node {
	return &Node{
		ID:         id,
		K:          k,
		StateSize:  stateSize,
		SketchSize: proj.Size(),
		U:          make([]float64, stateSize),
		DS:         make([]float64, stateSize),
		proj:       proj,
		idxBuf:     make([]agms.IndexType, proj.Depth()),
		maskBuf:    make([]bool, proj.Depth()),
	}
}

// Reset begins a round: zero the drift, assign the safe zone the
// coordinator broadcast, and seed incremental state against it.
func (n *Node) Reset(zone safezone.Func, cheap bool) {
	for i := range n.U {
		n.U[i] = 0
		n.DS[i] = 0
	}
	n.Zone = zone
	n.UsingCheapZone = cheap
	n.IncState = zone.NewIncState(n.U)
	n.Zeta = zone.Zeta(n.U)
	n.MinZeta = n.Zeta
	n.RoundLocalUpdates = 0
	n.Rebalanced = false
}

// Upgrade swaps in a new (presumably full, non-cheap) safe zone
// mid-round, re-seeding incremental state from the current drift so the
// switch is transparent to subsequent ApplyRecord calls. It returns the
// zeta delta the switch produced (new zeta minus the zeta the outgoing
// zone reported), for the coordinator's bit-weight bookkeeping.
func (n *Node) Upgrade(zone safezone.Func) float64 {
	before := n.Zeta
	n.Zone = zone
	n.UsingCheapZone = false
	n.IncState = zone.NewIncState(n.U)
	n.Zeta = zone.Zeta(n.U)
	if n.Zeta < n.MinZeta {
		n.MinZeta = n.Zeta
	}
	return n.Zeta - before
}

// ResetDrift zeroes the site's drift and re-seeds incremental state
// against the current zone without touching which zone is assigned,
// for mid-round rebalancing that continues the round rather than
// starting a new one.
func (n *Node) ResetDrift() {
	for i := range n.U {
		n.U[i] = 0
		n.DS[i] = 0
	}
	n.IncState = n.Zone.NewIncState(n.U)
	n.Zeta = n.Zone.Zeta(n.U)
	n.MinZeta = n.Zeta
}

// ApplyRecord applies one stream update belonging to operand op (0 for
// a self-join or the first two-way-join operand, 1 for the second) and
// returns the rebased DeltaVector, ready to hand to any other
// incremental consumer (e.g. a bit-weight discretizer).
func (n *Node) ApplyRecord(op int, key agms.KeyType, upd float64) agms.DeltaVector {
	n.proj.UpdateIndex(key, n.idxBuf)
	n.proj.UpdateMask(key, n.maskBuf)

	scale := upd / float64(n.K)
	base := agms.IndexType(op * n.SketchSize)

	d := agms.DeltaVector{
		Index: make([]agms.IndexType, len(n.idxBuf)),
		XOld:  make([]float64, len(n.idxBuf)),
		XNew:  make([]float64, len(n.idxBuf)),
	}
	for i, local := range n.idxBuf {
		g := base + local
		old := n.U[g]
		var delta float64
		if n.maskBuf[i] {
			delta = scale
		} else {
			delta = -scale
		}
		next := old + delta
		n.U[g] = next
		n.DS[g] += delta
		d.Index[i] = g
		d.XOld[i] = old
		d.XNew[i] = next
	}

	n.UpdateCount++
	n.RoundLocalUpdates++
	n.Zeta = n.Zone.ZetaInc(n.IncState, d)
	if n.Zeta < n.MinZeta {
		n.MinZeta = n.Zeta
	}
	return d
}
