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

package protocol

import (
	"fmt"
	"math"
	"math/rand"

	"geomsim/internal/network"
	"geomsim/internal/query"
	"geomsim/pkg/agms"
	"geomsim/pkg/safezone"
)

// Config is the protocol configuration an external continuous-query
// specification supplies.
type Config struct {
	UseCostModel bool
	Eikonal      bool
	Rebalance    RebalanceAlgorithm
	RblProjDim   int
	EpsilonPsi   float64
	NaiveMode    bool // force naive mode regardless of the zeta_E/k*sqrt(L) test
}

// Results accumulates the per-run reporting counters a monitoring run
// is expected to surface.
type Results struct {
	Rounds            int
	Subrounds         int
	SafeZonesSent     int
	UpdatesConsumed   int
	RebalanceSetTotal int
}

// SGM is the set-based Geometric Method coordinator: the moment a
// node's zeta goes non-positive it signals a synchronous violation RPC,
// and the coordinator either rebalances a subset of sites back into the
// admissible region or finalizes the round immediately.
type SGM struct {
	Query query.State
	Nodes []*Node
	Net   *network.Network
	Reg   *network.Registry
	Cfg   Config
	RNG   *rand.Rand
	K     int

	Results Results

	roundRebalanceBudget int // random_limits' remaining Σ|B| <= k budget
	naive                bool
}

// NewSGM builds an SGM coordinator over nodes sharing q and a seeded
// RNG for rebalancing permutations.
func NewSGM(q query.State, nodes []*Node, net *network.Network, reg *network.Registry, cfg Config, rng *rand.Rand) *SGM {
	c := &SGM{Query: q, Nodes: nodes, Net: net, Reg: reg, Cfg: cfg, RNG: rng, K: len(nodes)}
	c.StartRound()
	return c
}

// isNaive reports whether zeta_E < k*sqrt(L), or the config forces it.
func (c *SGM) isNaive() bool {
	if c.Cfg.NaiveMode {
		return true
	}
	L := c.Query.SketchProj().Width()
	return c.Query.ZetaAtE() < float64(c.K)*math.Sqrt(float64(L))
}

// StartRound resets every site's drift and broadcasts the round's safe
// zone (structured, or a cheap Ball under naive mode).
func (c *SGM) StartRound() {
	c.naive = c.isNaive()
	c.roundRebalanceBudget = c.K

	var zone safezone.Func
	if c.naive {
		zone = safezone.Ball{R: c.Query.ZetaAtE()}
	} else {
		zone = c.Query.Zeta()
	}
	for _, n := range c.Nodes {
		n.Reset(zone, c.naive)
		c.Net.Call(0, n.ID, "sgm_coordinator", "reset", network.Bytes(8*int64(zone.ZetaSize())), nil)
	}
}

// ApplyRecord routes a stream record to node n for operand op and, on a
// zeta violation, synchronously notifies the coordinator.
func (c *SGM) ApplyRecord(n *Node, op int, key agms.KeyType, upd float64) {
	n.ApplyRecord(op, key, upd)
	c.Results.UpdatesConsumed++
	if n.Zeta <= 0 {
		c.localViolation(n)
	}
}

// localViolation is the synchronous RPC a violating node issues.
func (c *SGM) localViolation(v *Node) {
	c.Net.Call(v.ID, 0, "sgm_coordinator", "local_violation", network.Bytes(8), network.Bytes(8))
	c.Results.SafeZonesSent++

	if c.Cfg.Rebalance == RebalanceNone || c.K <= 1 {
		c.FinalizeRound()
		return
	}

	var rs rebalanceSet
	switch c.Cfg.Rebalance {
	case RebalanceRandom:
		rs = tryRandomRebalance(c.RNG, c.Nodes, v, c.Query.Zeta(), 0, 0)
	case RebalanceRandomLimits:
		if c.roundRebalanceBudget > 0 {
			rs = tryRandomRebalance(c.RNG, c.Nodes, v, c.Query.Zeta(), randomLimitsCap(c.K), c.roundRebalanceBudget)
		}
	default:
		// RebalanceNone is handled above; anything else reaching here is
		// an algorithm SGM doesn't implement (bimodal/zero_balance are
		// FGM/FRGM-only, projection/random_projection aren't implemented
		// anywhere) — config.Validate rejects these for protocol "sgm"
		// before a run ever starts, so reaching this point is a
		// programming error, not user misconfiguration.
		panic(fmt.Sprintf("protocol: rebalance algorithm %s is not supported by SGM", c.Cfg.Rebalance))
	}

	if rs.ok && len(rs.sites) > 1 && len(rs.sites) < c.K {
		applyRebalance(rs)
		for _, n := range rs.sites {
			c.Net.Call(0, n.ID, "sgm_coordinator", "set_drift", network.Bytes(8*int64(len(rs.avgU))), nil)
		}
		c.Results.RebalanceSetTotal += len(rs.sites)
		c.roundRebalanceBudget -= len(rs.sites)
		return
	}
	c.FinalizeRound()
}

// FinalizeRound averages the drift of every non-rebalanced site into
// ΔE, applies it to the query estimate, and starts the next round.
func (c *SGM) FinalizeRound() {
	size := c.Query.StateSize()
	deltaE := make([]float64, size)
	for _, n := range c.Nodes {
		if n.Rebalanced {
			continue
		}
		for i, u := range n.U {
			deltaE[i] += u
		}
	}
	c.Query.UpdateEstimate(deltaE)
	c.Results.Rounds++
	c.StartRound()
}

// CurrentQest reports the coordinator's current aggregate estimate.
func (c *SGM) CurrentQest() float64 { return c.Query.Qest() }

// CurrentResults returns a snapshot of the run's counters.
func (c *SGM) CurrentResults() Results { return c.Results }

// ApplyRecordAt applies one record to the site at index idx. It exists
// so callers driving any of the three coordinators (SGM, AGM, FGM) can
// do so through one uniform signature.
func (c *SGM) ApplyRecordAt(idx int, op int, key agms.KeyType, upd float64) {
	c.ApplyRecord(c.Nodes[idx], op, key, upd)
}
