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

// Package query owns the continuous-query state objects a coordinator
// maintains: the reference sketch E, the admissible range [T_low,T_high]
// derived from it, and the safe zone built over that range. Nodes see
// only a read-only view of the safe zone; the coordinator is the sole
// owner and the sole writer of E.
package query

import (
	"fmt"

	"geomsim/pkg/agms"
	"geomsim/pkg/safezone"
)

// Type distinguishes the two supported continuous aggregate queries.
type Type int

const (
	Void Type = iota
	SelfJoin
	Join
)

func (t Type) String() string {
	switch t {
	case SelfJoin:
		return "SELFJOIN"
	case Join:
		return "JOIN"
	default:
		return "VOID"
	}
}

// Operands are the stream IDs a query draws from: one for SELFJOIN, two
// for JOIN.
type Operands []int

// StringWithBeta formats the query string "<QTYPE>(<op>[,<op>];eps=<beta>)",
// omitting the ";eps=..." clause when beta is 0.
func StringWithBeta(t Type, ops Operands, beta float64) string {
	opStr := ""
	for i, op := range ops {
		if i > 0 {
			opStr += ","
		}
		opStr += fmt.Sprintf("%d", op)
	}
	if beta == 0 {
		return fmt.Sprintf("%s(%s)", t, opStr)
	}
	return fmt.Sprintf("%s(%s;eps=%g)", t, opStr, beta)
}

// State is the common contract a coordinator round loop uses: rebuild
// the reference estimate after a round's averaged drift, and expose the
// safe zone nodes borrow against it.
type State interface {
	Zeta() safezone.Func
	ZetaAtE() float64
	Qest() float64
	UpdateEstimate(deltaE []float64)
	StateSize() int
	SketchProj() agms.Projection
	String() string
}

// SelfJoinState tracks a single sketch's self-join (norm-squared)
// estimate and the admissible range around it.
type SelfJoinState struct {
	Proj    agms.Projection
	Beta    float64
	E       []float64
	qest    float64
	tLow    float64
	tHigh   float64
	eikonal bool

	zone   *safezone.SelfJoinCombined
	zetaE  float64
}

// NewSelfJoinState builds the self-join query state from an initial
// reference sketch (may be all-zero before any warmup).
func NewSelfJoinState(proj agms.Projection, beta float64, eikonal bool, e0 []float64) *SelfJoinState {
	s := &SelfJoinState{Proj: proj, Beta: beta, eikonal: eikonal, E: append([]float64(nil), e0...)}
	s.rebuild()
	return s
}

func (s *SelfJoinState) rebuild() {
	sk := &agms.Sketch{Proj: s.Proj, Vec: s.E}
	s.qest = agms.EstimateNorm2(sk.RowNormsSquared())
	eps := s.Proj.Epsilon()
	if s.qest > 0 {
		s.tLow = (1 + eps) * s.qest / (1 + s.Beta)
		s.tHigh = (1 - eps) * s.qest / (1 - s.Beta)
	} else {
		s.tLow = 0
		s.tHigh = 1
	}
	s.zone = safezone.NewSelfJoinCombined(s.Proj, s.E, s.tLow, s.tHigh, s.eikonal)
	s.zetaE = s.zone.Zeta(make([]float64, len(s.E)))
}

// Zeta returns the safe-zone function nodes evaluate their drift
// against (read-only: nodes never mutate E).
func (s *SelfJoinState) Zeta() safezone.Func { return s.zone }

// ZetaAtE returns zeta(0), i.e. zeta evaluated at the reference point.
func (s *SelfJoinState) ZetaAtE() float64 { return s.zetaE }

// Qest returns the current self-join (norm-squared) estimate.
func (s *SelfJoinState) Qest() float64 { return s.qest }

// StateSize returns the length of the drift vector a node maintains for
// this query: one sketch's worth of cells.
func (s *SelfJoinState) StateSize() int { return s.Proj.Size() }

// SketchProj returns the AGMS projection this query's sketches share.
func (s *SelfJoinState) SketchProj() agms.Projection { return s.Proj }

// UpdateEstimate applies a round's averaged drift to E and rebuilds the
// safe zone and threshold pair around the new reference point.
func (s *SelfJoinState) UpdateEstimate(deltaE []float64) {
	for i, d := range deltaE {
		s.E[i] += d
	}
	s.rebuild()
}

// String formats the query string for reporting.
func (s *SelfJoinState) String() string {
	return StringWithBeta(SelfJoin, Operands{0}, s.Beta)
}

// TwoWayJoinState tracks the inner-product estimate between two
// sketches (stored concatenated in E, size 2*proj.Size()) and the
// admissible range around it.
type TwoWayJoinState struct {
	Proj    agms.Projection
	Beta    float64
	Stream1 int
	Stream2 int
	E       []float64 // length 2*proj.Size()
	qest    float64
	tLow    float64
	tHigh   float64
	eikonal bool

	zone  *safezone.TwoWayJoin
	zetaE float64
}

// NewTwoWayJoinState builds the two-way-join query state from an
// initial concatenated reference sketch.
func NewTwoWayJoinState(proj agms.Projection, beta float64, eikonal bool, stream1, stream2 int, e0 []float64) *TwoWayJoinState {
	s := &TwoWayJoinState{Proj: proj, Beta: beta, eikonal: eikonal, Stream1: stream1, Stream2: stream2, E: append([]float64(nil), e0...)}
	s.rebuild()
	return s
}

func (s *TwoWayJoinState) rebuild() {
	n := s.Proj.Size()
	e1 := &agms.Sketch{Proj: s.Proj, Vec: s.E[:n]}
	e2 := &agms.Sketch{Proj: s.Proj, Vec: s.E[n:]}
	s.qest = agms.EstimateProd(agms.RowDot(e1, e2))
	eps := s.Proj.Epsilon()
	if s.qest != 0 {
		s.tLow = (1 + eps) * s.qest / (1 + s.Beta)
		s.tHigh = (1 - eps) * s.qest / (1 - s.Beta)
		if s.tLow > s.tHigh {
			s.tLow, s.tHigh = s.tHigh, s.tLow
		}
	} else {
		s.tLow = -1
		s.tHigh = 1
	}
	s.zone = safezone.NewTwoWayJoin(s.Proj, s.E, s.tLow, s.tHigh, s.eikonal)
	s.zetaE = s.zone.Zeta(make([]float64, len(s.E)))
}

// Zeta returns the safe-zone function nodes evaluate their drift
// against.
func (s *TwoWayJoinState) Zeta() safezone.Func { return s.zone }

// ZetaAtE returns zeta(0).
func (s *TwoWayJoinState) ZetaAtE() float64 { return s.zetaE }

// Qest returns the current inner-product estimate.
func (s *TwoWayJoinState) Qest() float64 { return s.qest }

// StateSize returns the length of the drift vector a node maintains for
// this query: two sketches' worth of cells.
func (s *TwoWayJoinState) StateSize() int { return 2 * s.Proj.Size() }

// SketchProj returns the AGMS projection this query's sketches share.
func (s *TwoWayJoinState) SketchProj() agms.Projection { return s.Proj }

// UpdateEstimate applies a round's averaged drift to E and rebuilds.
func (s *TwoWayJoinState) UpdateEstimate(deltaE []float64) {
	for i, d := range deltaE {
		s.E[i] += d
	}
	s.rebuild()
}

// String formats the query string for reporting.
func (s *TwoWayJoinState) String() string {
	return StringWithBeta(Join, Operands{s.Stream1, s.Stream2}, s.Beta)
}
