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

package reporting

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLogSink_ImplementsResultSink(t *testing.T) {
	var _ ResultSink = LogSink{}
}

func TestFileSink_WritesSamplesAndResultAsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	sink.OnSample(QestSample{StreamCount: 10, Qest: 1.5, TrueValue: 1.4})
	sink.OnSample(QestSample{StreamCount: 20, Qest: 1.6, TrueValue: 1.5})
	sink.OnResult(ResultRow{Query: "q1", Protocol: "sgm", Sites: 4, Rounds: 3, FinalQest: 1.6})

	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open written file: %v", err)
	}
	defer f.Close()

	var kinds []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec fileSinkRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("unmarshal line %q: %v", scanner.Text(), err)
		}
		kinds = append(kinds, rec.Kind)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []string{"sample", "sample", "result"}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d lines, got %d: %v", len(want), len(kinds), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("line %d: expected kind %q, got %q", i, want[i], kinds[i])
		}
	}
}

func TestFileSink_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "append.jsonl")

	s1, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	s1.OnResult(ResultRow{Query: "first"})
	if err := s1.Close(); err != nil {
		t.Fatalf("close first sink: %v", err)
	}

	s2, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink (reopen): %v", err)
	}
	s2.OnResult(ResultRow{Query: "second"})
	if err := s2.Close(); err != nil {
		t.Fatalf("close second sink: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines after reopen-and-append, got %d", lines)
	}
}

func TestPrometheusSink_RegistersAndRecordsResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	if err != nil {
		t.Fatalf("NewPrometheusSink: %v", err)
	}

	sink.OnSample(QestSample{StreamCount: 1, Qest: 3.0})
	sink.OnResult(ResultRow{Rounds: 5, SafeZones: 12, Rebalances: 2, TCPBytes: 4096, FinalQest: 3.2})

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(metrics) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPrometheusSink_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusSink(reg); err != nil {
		t.Fatalf("first NewPrometheusSink: %v", err)
	}
	if _, err := NewPrometheusSink(reg); err == nil {
		t.Fatalf("expected an error registering the same metrics twice against one registry")
	}
}
