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
	"math"
	"math/rand"

	"geomsim/internal/network"
	"geomsim/internal/query"
	"geomsim/pkg/agms"
	"geomsim/pkg/safezone"
)

const agmMaxBitLevel = 300

// AGM is the bitwise Geometric Method coordinator: every site carries a
// discretized view of its own zeta (a signed integer "bitweight"), and a
// subround ends once the outstanding bit budget across all sites is
// exhausted. Each new subround takes the sites' total zeta over 2k as
// its quantum. Subrounds repeat until that total falls below 5% of
// zeta_E, at which point a rebalance is attempted before the round
// finalizes, or until the bit-level cap is hit, which finalizes the
// round directly.
type AGM struct {
	Query query.State
	Nodes []*Node
	Net   *network.Network
	Reg   *network.Registry
	Cfg   Config
	RNG   *rand.Rand
	K     int

	Results Results

	usingFull      []bool
	bitweight      []int
	totalBitweight []int
	zeta0          float64
	zetaQuantum    float64
	bitBudget      int
	bitLevel       int
	zetaE          float64
}

// NewAGM builds an AGM coordinator and starts its first round.
func NewAGM(q query.State, nodes []*Node, net *network.Network, reg *network.Registry, cfg Config, rng *rand.Rand) *AGM {
	c := &AGM{
		Query: q, Nodes: nodes, Net: net, Reg: reg, Cfg: cfg, RNG: rng, K: len(nodes),
		usingFull:      make([]bool, len(nodes)),
		bitweight:      make([]int, len(nodes)),
		totalBitweight: make([]int, len(nodes)),
	}
	c.StartRound()
	return c
}

// StartRound begins a round with every site on the cheap (radial) safe
// zone around zeta_E; sites are upgraded to the full safe zone
// individually, the first time their bitweight changes.
func (c *AGM) StartRound() {
	c.zetaE = c.Query.ZetaAtE()
	c.zeta0 = c.zetaE
	c.bitLevel = 1
	c.bitBudget = c.K
	c.zetaQuantum = c.zetaE / (2 * float64(c.K))

	for i, n := range c.Nodes {
		n.Reset(safezone.Ball{R: c.zetaE}, true)
		c.usingFull[i] = false
		c.bitweight[i] = 0
		c.totalBitweight[i] = 0
		c.Net.Call(0, n.ID, "agm_coordinator", "reset", network.Bytes(8), nil)
	}
}

// ApplyRecord applies one stream update at site idx and re-derives its
// discretized bitweight, reporting the change to the coordinator
// whenever it moves.
func (c *AGM) ApplyRecord(idx int, op int, key agms.KeyType, upd float64) {
	n := c.Nodes[idx]
	n.ApplyRecord(op, key, upd)
	c.Results.UpdatesConsumed++

	bwNew := int(math.Floor((c.zeta0 - n.Zeta) / c.zetaQuantum))
	dbw := bwNew - c.bitweight[idx]
	if dbw != 0 {
		c.thresholdCrossed(idx, dbw)
	}
}

// thresholdCrossed is the remote call a site issues whenever its
// bitweight changes; the first such call for a site upgrades it from
// the cheap zone to the full safe zone.
func (c *AGM) thresholdCrossed(idx int, deltaBits int) {
	n := c.Nodes[idx]
	c.Net.Call(n.ID, 0, "agm_coordinator", "threshold_crossed", network.Bytes(8), nil)

	if !c.usingFull[idx] {
		n.Upgrade(c.Query.Zeta())
		c.usingFull[idx] = true
		c.Results.SafeZonesSent++
	}

	c.bitweight[idx] += deltaBits
	c.totalBitweight[idx] += deltaBits
	c.bitBudget -= deltaBits
	if c.bitBudget < 0 {
		c.finishSubround()
	}
}

// finishSubround evaluates whether the family's combined zeta has
// dropped below 5% of zeta_E, which stops refining, or whether another,
// finer subround is warranted; agmMaxBitLevel bounds worst-case
// refinement depth.
func (c *AGM) finishSubround() {
	if c.bitLevel >= agmMaxBitLevel {
		c.finishRound()
		return
	}
	c.bitLevel++

	var totalZeta float64
	for _, n := range c.Nodes {
		totalZeta += n.Zeta
	}
	if totalZeta < c.zetaE*0.05 {
		c.finishSubrounds(totalZeta)
		return
	}
	c.startSubround(totalZeta)
}

// startSubround sets the discretization quantum to totalZeta/(2k) and
// resets every site's bit budget, broadcasting the new quantum.
func (c *AGM) startSubround(totalZeta float64) {
	c.bitBudget = c.K
	for i := range c.bitweight {
		c.bitweight[i] = 0
	}
	c.zetaQuantum = totalZeta / (2 * float64(c.K))
	for _, n := range c.Nodes {
		c.Net.Call(0, n.ID, "agm_coordinator", "reset_bitweight", network.Bytes(8), nil)
	}
	c.Results.Subrounds++
}

// finishSubrounds attempts a single min/max rebalance pass before
// finalizing the round: if the most-negative and most-positive site
// zetas straddle zero by enough to be worth the RPC, average them and
// run one more subround; otherwise finalize.
func (c *AGM) finishSubrounds(totalZeta float64) {
	if c.K > 1 {
		if rs, deltaZeta, ok := c.rebalancePairs(); ok {
			applyRebalance(rs)
			c.Results.RebalanceSetTotal += len(rs.sites)
			c.startSubround(totalZeta + deltaZeta)
			return
		}
	}
	c.finishRound()
}

// rebalancePairs pairs the site with the lowest zeta and the site with
// the highest zeta; if their signs differ and the smaller magnitude is
// a significant fraction of zeta_E, it pulls both into a rebalanced set.
func (c *AGM) rebalancePairs() (rebalanceSet, float64, bool) {
	if len(c.Nodes) == 0 {
		return rebalanceSet{}, 0, false
	}
	minI, maxI := 0, 0
	for i, n := range c.Nodes {
		if n.Zeta < c.Nodes[minI].Zeta {
			minI = i
		}
		if n.Zeta > c.Nodes[maxI].Zeta {
			maxI = i
		}
	}
	if minI == maxI {
		return rebalanceSet{}, 0, false
	}
	minH, maxH := c.Nodes[minI].Zeta, c.Nodes[maxI].Zeta
	if minH*maxH >= 0 {
		return rebalanceSet{}, 0, false
	}
	g := math.Min(-minH, maxH)
	if g <= 0.1*c.zetaE {
		return rebalanceSet{}, 0, false
	}

	a, b := c.Nodes[minI], c.Nodes[maxI]
	size := len(a.U)
	avg := make([]float64, size)
	for i := range avg {
		avg[i] = (a.U[i] + b.U[i]) / 2
	}
	deltaZeta := a.Zone.Zeta(avg) - (a.Zeta + b.Zeta)
	return rebalanceSet{sites: []*Node{a, b}, avgU: avg, ok: true}, deltaZeta, true
}

// finishRound collects every site's drift into the reference estimate
// and begins the next round. AGM has no cost model of its own — that's
// an FGM-only concept — so every round restarts every site on the cheap
// zone, exactly as StartRound does.
func (c *AGM) finishRound() {
	size := c.Query.StateSize()
	deltaE := make([]float64, size)
	for _, n := range c.Nodes {
		for i, u := range n.U {
			deltaE[i] += u
		}
	}

	c.Query.UpdateEstimate(deltaE)
	c.Results.Rounds++
	c.StartRound()
}

// CurrentQest reports the coordinator's current aggregate estimate.
func (c *AGM) CurrentQest() float64 { return c.Query.Qest() }

// CurrentResults returns a snapshot of the run's counters.
func (c *AGM) CurrentResults() Results { return c.Results }

// ApplyRecordAt is an alias for ApplyRecord, matching the signature
// SGM.ApplyRecordAt and FGM.ApplyRecordAt share.
func (c *AGM) ApplyRecordAt(idx int, op int, key agms.KeyType, upd float64) {
	c.ApplyRecord(idx, op, key, upd)
}
