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

package stream

import "testing"

func TestUniformGenerator_RespectsRanges(t *testing.T) {
	g := NewUniformGenerator(7, 2, 5, 100)
	for i := 0; i < 1000; i++ {
		r := g.Next()
		if r.StreamID < 0 || r.StreamID >= 2 {
			t.Fatalf("stream id %d out of range [0,2)", r.StreamID)
		}
		if r.SourceID < 0 || r.SourceID >= 5 {
			t.Fatalf("source id %d out of range [0,5)", r.SourceID)
		}
		if r.Key >= 100 {
			t.Fatalf("key %d out of range [0,100)", r.Key)
		}
		if r.Upd != 1 {
			t.Fatalf("expected unit updates, got %v", r.Upd)
		}
	}
}

func TestUniformGenerator_TimestampsStrictlyIncrease(t *testing.T) {
	g := NewUniformGenerator(1, 1, 1, 10)
	var last uint64
	for i := 0; i < 100; i++ {
		r := g.Next()
		if r.TS <= last {
			t.Fatalf("timestamp did not increase: got %d after %d", r.TS, last)
		}
		last = r.TS
	}
}

func TestUniformGenerator_ResetReproducesSequence(t *testing.T) {
	g := NewUniformGenerator(42, 3, 3, 50)
	first := g.NextN(20)
	g.Reset()
	second := g.NextN(20)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("record %d differs after reset: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestRendezvousAssigner_Deterministic(t *testing.T) {
	a := NewRendezvousAssigner(8)
	for sid := 0; sid < 50; sid++ {
		first := a.Assign(sid)
		second := a.Assign(sid)
		if first != second {
			t.Fatalf("source %d assigned inconsistently: %d then %d", sid, first, second)
		}
		if first < 0 || first >= 8 {
			t.Fatalf("assigned site %d out of range [0,8)", first)
		}
	}
}

func TestRendezvousAssigner_SingleSiteAlwaysZero(t *testing.T) {
	a := NewRendezvousAssigner(1)
	for sid := 0; sid < 10; sid++ {
		if got := a.Assign(sid); got != 0 {
			t.Fatalf("expected site 0 with k=1, got %d", got)
		}
	}
}

func TestWarmupBuffer_FillAndRecords(t *testing.T) {
	var w WarmupBuffer
	g := NewUniformGenerator(5, 1, 1, 20)
	w.Fill(g, 30)
	if w.Len() != 30 {
		t.Fatalf("expected 30 buffered records, got %d", w.Len())
	}
	if len(w.Records()) != 30 {
		t.Fatalf("Records() length mismatch: got %d", len(w.Records()))
	}
}
