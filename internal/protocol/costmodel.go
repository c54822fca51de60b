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

import "sort"

// SiteStat is one site's per-round cost-model inputs: Gamma is the
// fraction of this round's local updates seen at the site; Beta is the
// zeta drop a radial (cheap) safe zone would have reported; Alpha is
// the zeta drop the full safe zone actually reports, clamped to
// [0, Beta].
type SiteStat struct {
	Index int
	Gamma float64
	Beta  float64
	Alpha float64
}

// ChooseFullSet picks the subset of site indices that should receive
// the full (non-cheap) safe zone next round, maximizing predicted
// gain. totalUpdates is the round's total local update count across
// every site (used for the all-cheap short-circuit below); k is the
// site count; upgradeCost is the fixed per-site cost D of upgrading a
// site to the full safe zone (its descriptor's ZetaSize, in the units
// Gamma/Beta/Alpha are expressed in).
func ChooseFullSet(stats []SiteStat, totalUpdates, k int, upgradeCost float64) []int {
	if totalUpdates <= 100*k {
		return nil
	}

	var idx []SiteStat
	for _, s := range stats {
		if s.Gamma > 0 {
			idx = append(idx, s)
		}
	}
	if len(idx) == 0 {
		return nil
	}

	// Sort by theta = beta - alpha, descending: the sites whose full
	// safe zone would have suppressed the most drift go first.
	sort.Slice(idx, func(i, j int) bool {
		return (idx[i].Beta - idx[i].Alpha) > (idx[j].Beta - idx[j].Alpha)
	})

	var sumBeta float64
	for _, s := range idx {
		sumBeta += s.Beta
	}

	byGamma := append([]SiteStat(nil), idx...)
	sort.Slice(byGamma, func(i, j int) bool { return byGamma[i].Gamma > byGamma[j].Gamma })

	bestGain := negInf
	bestN := 0
	var thetaPrefix float64
	for n := 0; n <= len(idx); n++ {
		if n > 0 {
			thetaPrefix += idx[n-1].Beta - idx[n-1].Alpha
		}
		invTau := sumBeta - thetaPrefix
		if invTau <= 0 {
			continue
		}
		tau := 1 / invTau

		threshold := upgradeCost / tau
		iGamma := 0
		for iGamma < len(byGamma) && byGamma[iGamma].Gamma > threshold {
			iGamma++
		}

		var cUpd float64
		for j := 0; j < iGamma; j++ {
			cUpd += byGamma[j].Gamma / tau
		}
		cUpd += upgradeCost * float64(iGamma)

		gain := invTau - cUpd - float64(n)*upgradeCost
		if gain > bestGain {
			bestGain = gain
			bestN = n
		}
	}

	out := make([]int, 0, bestN)
	for i := 0; i < bestN; i++ {
		out = append(out, idx[i].Index)
	}
	return out
}

const negInf = -1e300
