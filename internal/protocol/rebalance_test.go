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

import "testing"

func TestParseRebalanceAlgorithm_RoundTripsWithString(t *testing.T) {
	algos := []RebalanceAlgorithm{
		RebalanceNone, RebalanceRandom, RebalanceRandomLimits,
		RebalanceProjection, RebalanceRandomProjection,
		RebalanceBimodal, RebalanceZeroBalance,
	}
	for _, a := range algos {
		got, err := ParseRebalanceAlgorithm(a.String())
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", a, err)
		}
		if got != a {
			t.Fatalf("round-trip mismatch: %s parsed back as %s", a, got)
		}
	}
}

func TestParseRebalanceAlgorithm_EmptyStringDefaultsToNone(t *testing.T) {
	got, err := ParseRebalanceAlgorithm("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != RebalanceNone {
		t.Fatalf("expected an empty string to default to RebalanceNone, got %s", got)
	}
}

func TestParseRebalanceAlgorithm_RejectsUnknownString(t *testing.T) {
	_, err := ParseRebalanceAlgorithm("quantum_bogon")
	if err == nil {
		t.Fatalf("expected an error for an unrecognized rebalance algorithm name")
	}
}

func TestRebalanceAlgorithm_StringOnUnknownValueIsNotEmpty(t *testing.T) {
	var a RebalanceAlgorithm = 99
	if s := a.String(); s == "" {
		t.Fatalf("expected a non-empty fallback string for an out-of-range value")
	}
}
