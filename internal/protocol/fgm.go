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

// FGM is the functional Geometric Method coordinator: a cost model
// chooses, per round, which sites are worth shipping the full (precise
// but expensive) safe zone to versus which can get by on a cheap radial
// one, trading a little early imprecision for fewer safe-zone sends on
// sites that rarely drift far. Configured with Cfg.Rebalance set to
// bimodal or zero_balance, it also runs FRGM's balance-term rebalancing:
// rather than finalizing the moment every site's bit budget is spent, it
// folds the round's drift into a shared balance term and keeps refining
// within the same round whenever that's predicted to recover enough of
// the family's zeta budget to be worth it.
type FGM struct {
	Query query.State
	Nodes []*Node
	Net   *network.Network
	Reg   *network.Registry
	Cfg   Config
	RNG   *rand.Rand
	K     int

	Results Results

	fullZone  safezone.Func
	cheapZone safezone.Func
	zetaE     float64

	hasCheap       []bool
	fullSet        map[int]bool // cost model's chosen upgrade set for this round
	zeta0          []float64
	zetaQuantum    []float64
	bitweight      []int
	totalBitweight []int
	bitBudget      int
	bitLevel       int
	upgradeCost    float64

	banked []float64 // drift folded in by a successful bimodal/zero_balance rebalance, pending the round's finishRound
}

// NewFGM builds an FGM coordinator and starts its first round.
func NewFGM(q query.State, nodes []*Node, net *network.Network, reg *network.Registry, cfg Config, rng *rand.Rand) *FGM {
	c := &FGM{
		Query: q, Nodes: nodes, Net: net, Reg: reg, Cfg: cfg, RNG: rng, K: len(nodes),
		hasCheap:       make([]bool, len(nodes)),
		zeta0:          make([]float64, len(nodes)),
		zetaQuantum:    make([]float64, len(nodes)),
		bitweight:      make([]int, len(nodes)),
		totalBitweight: make([]int, len(nodes)),
		fullSet:        make(map[int]bool),
	}
	c.StartRound()
	return c
}

// StartRound assigns every site a safe zone: the cheap radial one if the
// cost model is enabled (sites upgrade individually, on demand, inside
// thresholdCrossed), or the full one for everybody otherwise.
func (c *FGM) StartRound() {
	c.zetaE = c.Query.ZetaAtE()
	c.fullZone = c.Query.Zeta()
	c.cheapZone = safezone.Ball{R: c.zetaE}
	c.upgradeCost = float64(c.fullZone.ZetaSize() - c.cheapZone.ZetaSize())
	if c.upgradeCost < 1 {
		c.upgradeCost = 1
	}

	c.bitLevel = 1
	c.bitBudget = c.K
	useCheap := c.Cfg.UseCostModel

	for i, n := range c.Nodes {
		c.hasCheap[i] = useCheap
		if useCheap {
			n.Reset(c.cheapZone, true)
		} else {
			n.Reset(c.fullZone, false)
			c.Results.SafeZonesSent++
		}
		c.zeta0[i] = n.Zeta
		c.zetaQuantum[i] = n.Zeta / 2
		c.bitweight[i] = 0
		c.totalBitweight[i] = 0
		c.Net.Call(0, n.ID, "fgm_coordinator", "reset", network.Bytes(8*int64(n.Zone.ZetaSize())), nil)
	}
}

// ApplyRecord applies one stream update at site idx; a site reports a
// bitweight increase (never a decrease — FGM discretizes only the
// deepest dip, minzeta, seen so far this subround) as a threshold
// crossing.
func (c *FGM) ApplyRecord(idx int, op int, key agms.KeyType, upd float64) {
	n := c.Nodes[idx]
	n.ApplyRecord(op, key, upd)
	c.Results.UpdatesConsumed++

	bwNew := int(math.Floor((c.zeta0[idx] - n.MinZeta) / c.zetaQuantum[idx]))
	dbw := bwNew - c.bitweight[idx]
	if dbw > 0 {
		c.thresholdCrossed(idx, dbw)
	}
}

// thresholdCrossed is the per-site violation report; if the cost model
// picked this site for upgrade this round, its first crossing swaps in
// the full safe zone before accounting for the bit delta.
func (c *FGM) thresholdCrossed(idx int, deltaBits int) {
	n := c.Nodes[idx]
	c.Net.Call(n.ID, 0, "fgm_coordinator", "threshold_crossed", network.Bytes(8), nil)

	if c.hasCheap[idx] && c.fullSet[idx] {
		n.Upgrade(c.fullZone)
		extra := int(math.Floor((c.zeta0[idx]-n.Zeta)/c.zetaQuantum[idx])) - c.bitweight[idx]
		deltaBits += extra
		c.hasCheap[idx] = false
		c.Results.SafeZonesSent++
	}

	c.bitweight[idx] += deltaBits
	c.totalBitweight[idx] += deltaBits
	c.bitBudget -= deltaBits
	if c.bitBudget < 0 {
		c.finishSubround()
	}
}

// finishSubround checks whether the family's combined zeta has dropped
// below 1% of k*zeta_E, in which case the round is wrapped up
// (rebalancing first if the configured algorithm calls for it);
// otherwise it starts a new subround.
func (c *FGM) finishSubround() {
	var totalZeta float64
	for _, n := range c.Nodes {
		totalZeta += n.Zeta
	}
	c.bitLevel++

	if totalZeta < float64(c.K)*c.zetaE*0.01 {
		c.finishSubrounds(totalZeta)
	} else {
		c.startSubround(totalZeta)
	}
}

// startSubround sets every site's discretization quantum to the
// family's combined zeta over 2k, re-bases each site's zeta0 and minzeta
// at its current zeta, and resets the bit budget.
func (c *FGM) startSubround(totalZeta float64) {
	c.Results.Subrounds++
	c.bitBudget = c.K
	quantum := totalZeta / (2 * float64(c.K))
	for i, n := range c.Nodes {
		c.bitweight[i] = 0
		c.zeta0[i] = n.Zeta
		n.MinZeta = n.Zeta
		c.zetaQuantum[i] = quantum
		c.Net.Call(0, n.ID, "fgm_coordinator", "reset_bitweight", network.Bytes(8), nil)
	}
}

// finishSubrounds dispatches to whichever rebalancing algorithm the
// config asked for before finalizing the round. random_limits, like the
// source this coordinator is grounded on, finalizes immediately instead
// of rebalancing here — that algorithm is SGM's. projection and
// random_projection need a per-node projection RPC surface this
// coordinator does not carry, so configuring either against an FGM/FRGM
// run is rejected at config load time (see config.Validate); reaching
// this switch with one anyway is a programming error, not user
// misconfiguration, so it panics rather than silently finalizing.
func (c *FGM) finishSubrounds(totalZeta float64) {
	if c.K <= 1 {
		c.finishRound()
		return
	}
	switch c.Cfg.Rebalance {
	case RebalanceNone, RebalanceRandomLimits:
		c.finishRound()
	case RebalanceRandom:
		c.rebalanceRandom()
	case RebalanceBimodal:
		if c.rebalanceBimodal(totalZeta) {
			c.startSubround(c.zetaE)
			return
		}
		c.finishRound()
	case RebalanceZeroBalance:
		if c.rebalanceZeroBalance(totalZeta) {
			c.startSubround(c.zetaE)
			return
		}
		c.finishRound()
	default:
		panic(fmt.Sprintf("protocol: rebalance algorithm %s is not implemented for FGM", c.Cfg.Rebalance))
	}
}

// rebalanceRandom walks a random permutation of the sites that have
// already been upgraded to the full safe zone, accumulating their drift
// until averaging it back out would recover enough zeta to be worth the
// broadcast (gain >= 1.2*|B|*zeta_E, and |B| <= k/2); if no such subset
// is found it finalizes the round directly with every site's drift.
func (c *FGM) rebalanceRandom() {
	size := c.Query.StateSize()
	sum := make([]float64, size)
	var zetaB float64
	var bset []*Node

	perm := c.RNG.Perm(len(c.Nodes))
	for _, idx := range perm {
		if c.hasCheap[idx] {
			continue
		}
		n := c.Nodes[idx]
		for i, u := range n.U {
			sum[i] += u
		}
		bset = append(bset, n)
		zetaB += n.Zeta

		if len(bset) > 1 {
			avg := make([]float64, size)
			for i, v := range sum {
				avg[i] = v / float64(len(bset))
			}
			zetaBNew := c.fullZone.Zeta(avg)
			gain := float64(len(bset))*zetaBNew - zetaB
			if gain >= 1.2*float64(len(bset))*c.zetaE && len(bset) <= c.K/2 {
				rs := rebalanceSet{sites: bset, avgU: avg, ok: true}
				applyRebalance(rs)
				c.Results.RebalanceSetTotal += len(bset)
				return
			}
		}
	}
	c.finishRound()
}

// collectRoundDrift sums every site's current drift vector, the round's
// total observed update so far (banked or not).
func (c *FGM) collectRoundDrift() []float64 {
	sum := make([]float64, c.Query.StateSize())
	for _, n := range c.Nodes {
		for i, u := range n.U {
			sum[i] += u
		}
	}
	return sum
}

// bankDrift folds the round's drift observed so far into the
// coordinator's running balance term and resets every site to
// accumulate fresh from zero, so the round continues refining instead
// of finalizing. Banking keeps the full observed sum rather than the
// mu-weighted share the source's lambda-rescaled nodes would carry
// forward on their own — this coordinator has no live per-node lambda
// rescaling of incremental zeta tracking, so mu here only gates the
// accept/reject decision in rebalanceBimodal/rebalanceZeroBalance, never
// how much of the observed drift gets kept.
func (c *FGM) bankDrift(sum []float64) {
	if c.banked == nil {
		c.banked = make([]float64, len(sum))
	}
	for i, v := range sum {
		c.banked[i] += v
	}
	for _, n := range c.Nodes {
		n.ResetDrift()
	}
	c.Results.RebalanceSetTotal += c.K
}

// rebalanceBimodal is FRGM's fixed-split rebalance: it evaluates the
// shared balance term at mu=0.5 and accepts if that term plus the
// family's total zeta reaches a tenth of k*zeta_E; on acceptance the
// whole round's drift is banked (see bankDrift).
func (c *FGM) rebalanceBimodal(totalZeta float64) bool {
	const mu = 0.5
	sum := c.collectRoundDrift()
	psiBal := float64(c.K) * mu * c.fullZone.Zeta(scaleVector(sum, 1/mu))
	if psiBal+totalZeta < float64(c.K)*c.zetaE*0.1 {
		return false
	}
	c.bankDrift(sum)
	return true
}

// rebalanceZeroBalance is FRGM's mu-bisection rebalance: it searches for
// a split mu in [epsilon_psi, 1-5*epsilon_psi] for which the shared
// balance term's zeta lands at (or just above) zero, bisecting when the
// extremes straddle it, then accepts the split if the rescaled balance
// term plus the family's total zeta reaches
// k*zeta_E*epsilon_psi*(bisectSpan-1).
func (c *FGM) rebalanceZeroBalance(totalZeta float64) bool {
	eps := c.Cfg.EpsilonPsi
	if eps <= 0 {
		eps = 0.01
	}
	const bisectSpan = 5
	sum := c.collectRoundDrift()

	muMax := 1 - bisectSpan*eps
	zMax := c.fullZone.Zeta(scaleVector(sum, 1/muMax))
	if zMax < 0 {
		return false
	}

	muMin := eps
	zMin := c.fullZone.Zeta(scaleVector(sum, 1/muMin))

	mu, psiBal := muMin, zMin
	if zMin < 0 {
		prec := 0.5 * eps * c.zetaE
		for math.Abs(zMax-zMin) > prec {
			mu = 0.5 * (muMin + muMax)
			psiBal = c.fullZone.Zeta(scaleVector(sum, 1/mu))
			if psiBal >= 0 {
				muMax, zMax = mu, psiBal
			} else {
				muMin, zMin = mu, psiBal
			}
		}
	}

	psiBal *= mu * float64(c.K)
	if psiBal+totalZeta < float64(c.K)*c.zetaE*eps*(bisectSpan-1) {
		return false
	}
	c.bankDrift(sum)
	return true
}

// scaleVector returns a copy of v with every element multiplied by
// factor, used to evaluate zeta at a rescaled drift without mutating
// the drift vector being scaled.
func scaleVector(v []float64, factor float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * factor
	}
	return out
}

// finishRound gathers every site's drift (already 1/k-scaled, so no
// further division is needed — see the design ledger's drift
// convention) plus anything a bimodal/zero_balance rebalance banked
// earlier this round, scores the cost model's upgrade set for next
// round, and restarts.
func (c *FGM) finishRound() {
	size := c.Query.StateSize()
	deltaE := make([]float64, size)
	var roundUpdates float64
	for _, n := range c.Nodes {
		for i, u := range n.U {
			deltaE[i] += u
		}
		roundUpdates += float64(n.RoundLocalUpdates)
	}
	for i, v := range c.banked {
		deltaE[i] += v
	}
	c.banked = nil

	if c.Cfg.UseCostModel && roundUpdates > 0 {
		c.fullSet = c.scoreCostModel(roundUpdates)
	}

	c.Query.UpdateEstimate(deltaE)
	c.Results.Rounds++
	c.StartRound()
}

// scoreCostModel reproduces the alpha/beta/gamma statistics the
// functional variant uses to decide which sites are worth upgrading next
// round: gamma is a site's share of round traffic; beta the zeta the
// cheap zone alone would have surrendered to its raw drift; alpha the
// (smaller) drop the full zone actually reports, clamped into [0,beta].
func (c *FGM) scoreCostModel(roundUpdates float64) map[int]bool {
	kzeta := float64(c.K) * c.zetaE
	stats := make([]SiteStat, 0, c.K)
	for i, n := range c.Nodes {
		if n.RoundLocalUpdates == 0 {
			continue
		}
		gamma := float64(n.RoundLocalUpdates) / roundUpdates
		beta := c.zetaE - c.cheapZone.Zeta(n.DS)
		if beta <= 0 {
			continue
		}
		alpha := c.zetaE - c.fullZone.Zeta(n.DS)
		if alpha < 0 {
			alpha = 0
		} else if alpha > beta {
			alpha = beta
		}
		stats = append(stats, SiteStat{Index: i, Gamma: gamma, Beta: beta / kzeta, Alpha: alpha / kzeta})
	}
	chosen := ChooseFullSet(stats, int(roundUpdates), c.K, c.upgradeCost)
	out := make(map[int]bool, len(chosen))
	for _, i := range chosen {
		out[i] = true
	}
	return out
}

// CurrentQest reports the coordinator's current aggregate estimate.
func (c *FGM) CurrentQest() float64 { return c.Query.Qest() }

// CurrentResults returns a snapshot of the run's counters.
func (c *FGM) CurrentResults() Results { return c.Results }

// ApplyRecordAt is an alias for ApplyRecord, matching the signature
// SGM.ApplyRecordAt and AGM.ApplyRecordAt share.
func (c *FGM) ApplyRecordAt(idx int, op int, key agms.KeyType, upd float64) {
	c.ApplyRecord(idx, op, key, upd)
}
