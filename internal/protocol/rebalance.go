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
	"math/rand"

	"geomsim/pkg/safezone"
)

// RebalanceAlgorithm selects how a coordinator reacts to a local safe
// zone violation.
type RebalanceAlgorithm int

const (
	RebalanceNone RebalanceAlgorithm = iota
	RebalanceRandom
	RebalanceRandomLimits
	RebalanceProjection
	RebalanceRandomProjection
	RebalanceBimodal
	RebalanceZeroBalance
)

// String renders the algorithm the way config files name it, so a
// coordinator that refuses an algorithm it doesn't implement can say
// which one in its panic message.
func (a RebalanceAlgorithm) String() string {
	switch a {
	case RebalanceNone:
		return "none"
	case RebalanceRandom:
		return "random"
	case RebalanceRandomLimits:
		return "random_limits"
	case RebalanceProjection:
		return "projection"
	case RebalanceRandomProjection:
		return "random_projection"
	case RebalanceBimodal:
		return "bimodal"
	case RebalanceZeroBalance:
		return "zero_balance"
	default:
		return fmt.Sprintf("RebalanceAlgorithm(%d)", int(a))
	}
}

// ParseRebalanceAlgorithm maps a config string to its enum value. Unlike
// a bare switch with a default case, an unrecognized string is an error,
// not a silent fall back to RebalanceNone — callers building a
// coordinator from user-supplied config should fail loudly on a typo
// rather than quietly run with no rebalancing at all.
func ParseRebalanceAlgorithm(s string) (RebalanceAlgorithm, error) {
	switch s {
	case "", "none":
		return RebalanceNone, nil
	case "random":
		return RebalanceRandom, nil
	case "random_limits":
		return RebalanceRandomLimits, nil
	case "bimodal":
		return RebalanceBimodal, nil
	case "zero_balance":
		return RebalanceZeroBalance, nil
	case "projection":
		return RebalanceProjection, nil
	case "random_projection":
		return RebalanceRandomProjection, nil
	default:
		return RebalanceNone, fmt.Errorf("protocol: unknown rebalance algorithm %q", s)
	}
}

// randomLimitsCap returns ceil((k+3)/2), the |B| cap random_limits
// applies.
func randomLimitsCap(k int) int { return (k + 4) / 2 }

// rebalanceSet is the outcome of attempting a rebalance: the sites
// pulled in (always including the violator) and their averaged drift,
// or ok=false if no admissible set was found before the permutation (or
// the applicable cap) ran out.
type rebalanceSet struct {
	sites []*Node
	avgU  []float64
	ok    bool
}

// tryRandomRebalance starts B={violator} and extends it one site at a
// time, in a random permutation of the remaining sites, stopping at the
// first B for which zeta(E + avg(U_B)) > 0. capSize<=0 means
// unbounded; capRemaining bounds |B| by what is left of random_limits'
// round-total Σ|B| <= k budget, and capRemaining<=0 also means
// unbounded, so callers skip the call once that budget is spent.
func tryRandomRebalance(rng *rand.Rand, nodes []*Node, violator *Node, zone safezone.Func, capSize, capRemaining int) rebalanceSet {
	size := len(violator.U)
	sum := append([]float64(nil), violator.U...)
	set := []*Node{violator}

	perm := rng.Perm(len(nodes))
	for _, idx := range perm {
		site := nodes[idx]
		if site == violator {
			continue
		}
		if capSize > 0 && len(set) >= capSize {
			break
		}
		if capRemaining > 0 && len(set)+1 > capRemaining {
			break
		}
		set = append(set, site)
		for i := 0; i < size; i++ {
			sum[i] += site.U[i]
		}

		avg := make([]float64, size)
		for i, v := range sum {
			avg[i] = v / float64(len(set))
		}
		if zone.Zeta(avg) > 0 {
			return rebalanceSet{sites: set, avgU: avg, ok: true}
		}
	}
	return rebalanceSet{ok: false}
}

// applyRebalance overwrites every site's drift with the averaged drift
// and marks them rebalanced, so round finalization excludes them from
// the non-rebalanced sum.
func applyRebalance(rs rebalanceSet) {
	for _, n := range rs.sites {
		copy(n.U, rs.avgU)
		n.Rebalanced = true
	}
}
