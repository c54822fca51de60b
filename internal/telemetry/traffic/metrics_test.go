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

package traffic

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func countersSnapshot(t *testing.T) map[string]float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]float64)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				out[mf.GetName()] += c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				out[mf.GetName()] = g.GetValue()
			}
		}
	}
	return out
}

func TestObserveFunctions_NoopWhenDisabled(t *testing.T) {
	Enable(Config{Enabled: false})
	before := countersSnapshot(t)

	ObserveMessage(100, 140)
	ObserveRound(3.14)
	ObserveSubround()
	ObserveSafeZoneSent()
	ObserveRebalance(2)
	SetActiveSites(4)

	after := countersSnapshot(t)
	for name, v := range before {
		if after[name] != v {
			t.Fatalf("metric %s changed while disabled: %v -> %v", name, v, after[name])
		}
	}
}

func TestObserveFunctions_RecordWhenEnabled(t *testing.T) {
	Enable(Config{Enabled: true})
	defer Enable(Config{Enabled: false})

	before := countersSnapshot(t)
	ObserveMessage(100, 140)
	ObserveRound(2.5)
	ObserveSubround()
	ObserveSafeZoneSent()
	ObserveRebalance(3)
	after := countersSnapshot(t)

	if after["geomsim_messages_total"] != before["geomsim_messages_total"]+1 {
		t.Fatalf("expected messages_total to increase by 1")
	}
	if after["geomsim_bytes_total"] != before["geomsim_bytes_total"]+100 {
		t.Fatalf("expected bytes_total to increase by 100")
	}
	if after["geomsim_tcp_bytes_total"] != before["geomsim_tcp_bytes_total"]+140 {
		t.Fatalf("expected tcp_bytes_total to increase by 140")
	}
	if after["geomsim_rounds_total"] != before["geomsim_rounds_total"]+1 {
		t.Fatalf("expected rounds_total to increase by 1")
	}
	if after["geomsim_subrounds_total"] != before["geomsim_subrounds_total"]+1 {
		t.Fatalf("expected subrounds_total to increase by 1")
	}
	if after["geomsim_safezones_sent_total"] != before["geomsim_safezones_sent_total"]+1 {
		t.Fatalf("expected safezones_sent_total to increase by 1")
	}
	if after["geomsim_rebalance_sites_total"] != before["geomsim_rebalance_sites_total"]+3 {
		t.Fatalf("expected rebalance_sites_total to increase by 3")
	}
	if after["geomsim_qest"] != 2.5 {
		t.Fatalf("expected qest gauge to be 2.5, got %v", after["geomsim_qest"])
	}
}

func TestEnabled_ReflectsConfig(t *testing.T) {
	Enable(Config{Enabled: true})
	if !Enabled() {
		t.Fatalf("expected Enabled() true after Enable(true)")
	}
	Enable(Config{Enabled: false})
	if Enabled() {
		t.Fatalf("expected Enabled() false after Enable(false)")
	}
}
