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
	"math/rand"
	"testing"

	"geomsim/internal/network"
	"geomsim/internal/query"
	"geomsim/pkg/agms"
)

func newFGMFixture(t *testing.T, k int, beta float64, cfg Config) (*FGM, []*Node) {
	t.Helper()
	proj := agms.NewProjection(5, 400, 23)
	q := query.NewSelfJoinState(proj, beta, false, make([]float64, proj.Size()))
	reg := network.NewRegistry()
	net := network.NewNetwork(reg)
	rng := rand.New(rand.NewSource(31))

	nodes := make([]*Node, k)
	for i := 0; i < k; i++ {
		nodes[i] = NewNode(i, k, q.StateSize(), proj)
	}
	c := NewFGM(q, nodes, net, reg, cfg, rng)
	return c, nodes
}

func TestFGM_CostModelDisabledStartsEveryoneOnFullZone(t *testing.T) {
	c, _ := newFGMFixture(t, 4, 0.3, Config{UseCostModel: false})
	for i := range c.hasCheap {
		if c.hasCheap[i] {
			t.Fatalf("site %d should start on the full zone when the cost model is off", i)
		}
	}
	if c.Results.SafeZonesSent != 4 {
		t.Fatalf("expected 4 full safe zones sent at round start, got %d", c.Results.SafeZonesSent)
	}
}

func TestFGM_CostModelEnabledStartsEveryoneOnCheapZone(t *testing.T) {
	c, _ := newFGMFixture(t, 4, 0.3, Config{UseCostModel: true, Rebalance: RebalanceRandom})
	for i := range c.hasCheap {
		if !c.hasCheap[i] {
			t.Fatalf("site %d should start on the cheap zone when the cost model is on", i)
		}
	}
	if c.Results.SafeZonesSent != 0 {
		t.Fatalf("expected zero full safe zones sent at round start, got %d", c.Results.SafeZonesSent)
	}
}

func TestFGM_UpgradeCostIsPositive(t *testing.T) {
	c, _ := newFGMFixture(t, 4, 0.3, Config{UseCostModel: true})
	if c.upgradeCost <= 0 {
		t.Fatalf("expected a positive upgrade cost, got %v", c.upgradeCost)
	}
}

func TestFGM_StreamConverges(t *testing.T) {
	c, nodes := newFGMFixture(t, 4, 0.6, Config{UseCostModel: false})
	rng := rand.New(rand.NewSource(77))

	freqs := make(map[uint64]float64)
	for i := 0; i < 20000; i++ {
		key := agms.KeyType(rng.Intn(250))
		site := i % len(nodes)
		c.ApplyRecord(site, 0, key, 1.0)
		freqs[key]++
	}
	var trueSum float64
	for _, f := range freqs {
		trueSum += f * f
	}

	qest := c.Query.Qest()
	if qest <= 0 {
		t.Fatalf("expected a positive self-join estimate, got %v", qest)
	}
	ratio := qest / trueSum
	if ratio < 0.25 || ratio > 4.0 {
		t.Fatalf("estimate %v too far from true self-join %v (ratio %v)", qest, trueSum, ratio)
	}
}

func TestFGM_FinishRoundWithNoTrafficSkipsCostModel(t *testing.T) {
	c, _ := newFGMFixture(t, 3, 0.4, Config{UseCostModel: true})
	c.finishRound()
	if c.Results.Rounds != 1 {
		t.Fatalf("expected Rounds=1 after finishRound, got %d", c.Results.Rounds)
	}
	if len(c.fullSet) != 0 {
		t.Fatalf("expected an empty upgrade set when no traffic occurred, got %v", c.fullSet)
	}
}

func TestFGM_BankDriftZeroesNodesAndAccumulates(t *testing.T) {
	c, nodes := newFGMFixture(t, 3, 0.4, Config{UseCostModel: false})
	for i, n := range nodes {
		n.U[0] = float64(i + 1)
		n.DS[0] = float64(i + 1)
	}
	sum := c.collectRoundDrift()
	if sum[0] != 6 {
		t.Fatalf("expected collected drift 1+2+3=6, got %v", sum[0])
	}

	c.bankDrift(sum)
	for _, n := range nodes {
		if n.U[0] != 0 || n.DS[0] != 0 {
			t.Fatalf("node %d drift not reset after banking, got U=%v DS=%v", n.ID, n.U[0], n.DS[0])
		}
	}
	if c.banked[0] != 6 {
		t.Fatalf("expected banked drift 6, got %v", c.banked[0])
	}
	if c.Results.RebalanceSetTotal != c.K {
		t.Fatalf("expected RebalanceSetTotal=%d after banking every site, got %d", c.K, c.Results.RebalanceSetTotal)
	}

	// A second banking round should accumulate rather than overwrite.
	nodes[0].U[0] = 4
	sum2 := c.collectRoundDrift()
	c.bankDrift(sum2)
	if c.banked[0] != 10 {
		t.Fatalf("expected banked drift to accumulate to 10, got %v", c.banked[0])
	}
}

func TestFGM_FinishRoundFoldsBankedDriftIntoEstimate(t *testing.T) {
	c, nodes := newFGMFixture(t, 2, 0.4, Config{UseCostModel: false})
	nodes[0].U[0] = 5
	nodes[1].U[0] = 3
	c.bankDrift(c.collectRoundDrift())

	// Only cell 0 (one sketch row) moves, so the median-of-rows Qest can
	// stay put; the reference estimate E itself must absorb 5+3=8.
	before := c.Query.(*query.SelfJoinState).E[0]
	c.finishRound()
	after := c.Query.(*query.SelfJoinState).E[0]
	if after-before != 8 {
		t.Fatalf("expected finishRound to move E[0] by the banked drift 8, moved by %v", after-before)
	}
	if c.banked != nil {
		t.Fatalf("expected banked drift cleared after finishRound, got %v", c.banked)
	}
}

func TestFGM_RebalanceBimodalRejectsDriftPastViolation(t *testing.T) {
	c, nodes := newFGMFixture(t, 4, 0.4, Config{UseCostModel: false, Rebalance: RebalanceBimodal})
	for _, n := range nodes {
		for i := range n.U {
			n.U[i] = 1e6
			n.DS[i] = 1e6
		}
	}
	// Drift this far past the safe zone's boundary drives the rescaled
	// zeta deeply negative, so the balance term can't clear the 0.1*k*zeta_E
	// acceptance bar no matter how large totalZeta already is.
	if accepted := c.rebalanceBimodal(0); accepted {
		t.Fatalf("expected drift this far past the safe zone to reject bimodal rebalancing")
	}
	if c.banked != nil {
		t.Fatalf("expected nothing banked on rejection, got %v", c.banked)
	}
}

func TestFGM_RebalanceZeroBalanceRejectsDriftPastViolation(t *testing.T) {
	c, nodes := newFGMFixture(t, 4, 0.4, Config{UseCostModel: false, Rebalance: RebalanceZeroBalance, EpsilonPsi: 0.01})
	for _, n := range nodes {
		for i := range n.U {
			n.U[i] = 1e6
			n.DS[i] = 1e6
		}
	}
	// Even at mu close to 1, the rescaled drift's zeta is deeply negative,
	// so rebalanceZeroBalance takes its zMax<0 early exit.
	if accepted := c.rebalanceZeroBalance(0); accepted {
		t.Fatalf("expected drift this far past the safe zone to reject zero-balance rebalancing")
	}
	if c.banked != nil {
		t.Fatalf("expected nothing banked on rejection, got %v", c.banked)
	}
}

func TestFGM_ZeroBalanceStreamRunsToCompletionWithoutPanicking(t *testing.T) {
	c, nodes := newFGMFixture(t, 4, 0.3, Config{UseCostModel: false, Rebalance: RebalanceZeroBalance, EpsilonPsi: 0.01})
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 20000 && c.Results.Rounds == 0; i++ {
		key := agms.KeyType(rng.Intn(250))
		c.ApplyRecord(i%len(nodes), 0, key, 1.0)
	}
	if c.Results.Rounds == 0 {
		t.Fatalf("expected at least one round to finalize under zero-balance rebalancing")
	}
}

func TestFGM_BimodalStreamRunsToCompletionWithoutPanicking(t *testing.T) {
	c, nodes := newFGMFixture(t, 4, 0.3, Config{UseCostModel: false, Rebalance: RebalanceBimodal})
	rng := rand.New(rand.NewSource(101))
	for i := 0; i < 20000 && c.Results.Rounds == 0; i++ {
		key := agms.KeyType(rng.Intn(250))
		c.ApplyRecord(i%len(nodes), 0, key, 1.0)
	}
	if c.Results.Rounds == 0 {
		t.Fatalf("expected at least one round to finalize under bimodal rebalancing")
	}
}
