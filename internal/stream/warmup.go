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

// WarmupBuffer accumulates the records a run plays before START_STREAM.
// It only stores them: cmd/geomsim-sim replays them through the
// coordinator's ordinary ApplyRecordAt path, rounds and safe zones
// included, so they do not seed the reference estimate directly.
type WarmupBuffer struct {
	records []Record
}

// Add appends one warmup record.
func (w *WarmupBuffer) Add(r Record) { w.records = append(w.records, r) }

// Fill drains n records from gen into the buffer.
func (w *WarmupBuffer) Fill(gen *UniformGenerator, n int) {
	for i := 0; i < n; i++ {
		w.Add(gen.Next())
	}
}

// Records returns the buffered warmup records, in arrival order.
func (w *WarmupBuffer) Records() []Record { return w.records }

// Len returns the number of buffered records.
func (w *WarmupBuffer) Len() int { return len(w.records) }
