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

// Package config loads the JSON description of a continuous query and
// the protocol run around it: which aggregate to monitor, over which
// streams, at what precision, using which GM variant and rebalancing
// strategy.
package config

import (
	"encoding/json"
	"fmt"
	"io"
)

// Query describes one continuous-query run, as parsed from JSON.
type Query struct {
	Type      string  `json:"type"`        // "selfjoin" or "join"
	Stream1   int     `json:"stream1"`
	Stream2   int     `json:"stream2"`     // ignored for selfjoin
	Beta      float64 `json:"beta"`        // admissible-range half-width
	Depth     int     `json:"depth"`       // AGMS projection depth
	Width     int     `json:"width"`       // AGMS projection width
	Seed      int64   `json:"seed"`
	Eikonal   bool    `json:"eikonal"`

	Sites        int     `json:"sites"`
	Protocol     string  `json:"protocol"`       // "sgm", "agm", "fgm", "frgm"
	Rebalance    string  `json:"rebalance"`      // "none", "random", "random_limits", "bimodal", "zero_balance"
	UseCostModel bool    `json:"use_cost_model"`
	RblProjDim   int     `json:"rbl_proj_dim"`
	NaiveMode    bool    `json:"naive_mode"`
	EpsilonPsi   float64 `json:"epsilon_psi"` // bimodal/zero_balance convergence tolerance; 0 picks the protocol default

	WarmupRecords int `json:"warmup_records"`
}

// rebalanceAllowedForProtocol lists, per resolved protocol, the
// rebalance strings that protocol's coordinator actually implements.
// "frgm" is an alias for "fgm": both are built from the same FGM
// coordinator, selected into FRGM's balance-term rebalancing mode by
// choosing "bimodal" or "zero_balance" here.
var rebalanceAllowedForProtocol = map[string]map[string]bool{
	"sgm": {"none": true, "random": true, "random_limits": true},
	"agm": {"none": true},
	"fgm": {"none": true, "random": true, "random_limits": true, "bimodal": true, "zero_balance": true},
	"frgm": {"none": true, "random": true, "random_limits": true, "bimodal": true, "zero_balance": true},
}

// Validate checks that a parsed Query is internally consistent,
// filling in the defaults a zero-value JSON field implies.
func (q *Query) Validate() error {
	switch q.Type {
	case "selfjoin", "join":
	case "":
		return fmt.Errorf("config: missing query type")
	default:
		return fmt.Errorf("config: unknown query type %q", q.Type)
	}
	if q.Type == "join" && q.Stream1 == q.Stream2 {
		return fmt.Errorf("config: join query needs two distinct streams, got %d and %d", q.Stream1, q.Stream2)
	}
	if q.Beta <= 0 || q.Beta >= 1 {
		return fmt.Errorf("config: beta must be in (0,1), got %v", q.Beta)
	}
	if q.Depth <= 0 || q.Width <= 0 {
		return fmt.Errorf("config: projection depth and width must be positive, got depth=%d width=%d", q.Depth, q.Width)
	}
	if q.Sites <= 0 {
		return fmt.Errorf("config: sites must be positive, got %d", q.Sites)
	}
	switch q.Protocol {
	case "sgm", "agm", "fgm", "frgm":
	case "":
		q.Protocol = "sgm"
	default:
		return fmt.Errorf("config: unknown protocol %q", q.Protocol)
	}
	if q.Rebalance == "" {
		q.Rebalance = "none"
	}
	allowed, ok := rebalanceAllowedForProtocol[q.Protocol]
	if !ok || !allowed[q.Rebalance] {
		return fmt.Errorf("config: rebalance algorithm %q is not supported by protocol %q", q.Rebalance, q.Protocol)
	}
	if q.EpsilonPsi < 0 || q.EpsilonPsi >= 1 {
		return fmt.Errorf("config: epsilon_psi must be in [0,1), got %v", q.EpsilonPsi)
	}
	return nil
}

// Load parses and validates a Query from r.
func Load(r io.Reader) (*Query, error) {
	var q Query
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&q); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}
