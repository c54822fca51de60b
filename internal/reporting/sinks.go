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
	"fmt"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

// LogSink writes every sample and the final row through the standard
// logger; useful for interactive runs and tests.
type LogSink struct{}

// OnSample logs one Qest sample.
func (LogSink) OnSample(s QestSample) {
	log.Printf("qest stream_count=%d qest=%.6g true=%.6g", s.StreamCount, s.Qest, s.TrueValue)
}

// OnResult logs the final result row.
func (LogSink) OnResult(r ResultRow) {
	log.Printf("result query=%s protocol=%s sites=%d rounds=%d subrounds=%d safezones=%d "+
		"rebalances=%d messages=%d bytes=%d tcp_bytes=%d qest=%.6g",
		r.Query, r.Protocol, r.Sites, r.Rounds, r.Subrounds, r.SafeZones,
		r.Rebalances, r.Messages, r.Bytes, r.TCPBytes, r.FinalQest)
}

// Close is a no-op for LogSink.
func (LogSink) Close() error { return nil }

// FileSink appends newline-delimited JSON samples and result rows to a
// single buffered file, flushing after every result row and on Close.
type FileSink struct {
	f *os.File
	w *bufio.Writer
}

// NewFileSink opens (or creates) the file at path in append mode.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink{f: f, w: bufio.NewWriterSize(f, 1<<16)}, nil
}

type fileSinkRecord struct {
	Kind   string      `json:"kind"`
	Sample *QestSample `json:"sample,omitempty"`
	Result *ResultRow  `json:"result,omitempty"`
}

func (s *FileSink) encode(rec fileSinkRecord) {
	enc := json.NewEncoder(s.w)
	if err := enc.Encode(&rec); err != nil {
		_ = s.w.Flush()
		_ = enc.Encode(&rec)
	}
}

// OnSample appends one sample as a JSON line.
func (s *FileSink) OnSample(sample QestSample) {
	s.encode(fileSinkRecord{Kind: "sample", Sample: &sample})
}

// OnResult appends the final result row as a JSON line and flushes.
func (s *FileSink) OnResult(r ResultRow) {
	s.encode(fileSinkRecord{Kind: "result", Result: &r})
	_ = s.w.Flush()
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	_ = s.w.Flush()
	return s.f.Close()
}

// PrometheusSink publishes each sample as a gauge and the final result
// row as a set of counters/gauges, for scraping by a live dashboard.
type PrometheusSink struct {
	qest       prometheus.Gauge
	streamPos  prometheus.Counter
	rounds     prometheus.Gauge
	safezones  prometheus.Gauge
	rebalances prometheus.Gauge
	tcpBytes   prometheus.Gauge
	lastStream uint64 // StreamCount of the previous sample
}

// NewPrometheusSink registers the sink's metrics against reg (use
// prometheus.DefaultRegisterer for the global registry).
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		qest:       prometheus.NewGauge(prometheus.GaugeOpts{Name: "geomsim_qest", Help: "Current aggregate estimate"}),
		streamPos:  prometheus.NewCounter(prometheus.CounterOpts{Name: "geomsim_stream_records_total", Help: "Stream records processed"}),
		rounds:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "geomsim_rounds", Help: "Rounds completed"}),
		safezones:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "geomsim_safezones_sent", Help: "Safe zones transmitted"}),
		rebalances: prometheus.NewGauge(prometheus.GaugeOpts{Name: "geomsim_rebalance_sites_total", Help: "Sites pulled into a rebalance set"}),
		tcpBytes:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "geomsim_tcp_bytes", Help: "Simulated TCP wire bytes transmitted"}),
	}
	collectors := []prometheus.Collector{s.qest, s.streamPos, s.rounds, s.safezones, s.rebalances, s.tcpBytes}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("reporting: register metric: %w", err)
		}
	}
	return s, nil
}

// OnSample updates the qest gauge and bumps the stream-position counter
// to sample.StreamCount (Prometheus counters only increase, so this adds
// the delta since the last sample).
func (s *PrometheusSink) OnSample(sample QestSample) {
	s.qest.Set(sample.Qest)
	if sample.StreamCount > s.lastStream {
		s.streamPos.Add(float64(sample.StreamCount - s.lastStream))
		s.lastStream = sample.StreamCount
	}
}

// OnResult publishes the final row's gauges.
func (s *PrometheusSink) OnResult(r ResultRow) {
	s.qest.Set(r.FinalQest)
	s.rounds.Set(float64(r.Rounds))
	s.safezones.Set(float64(r.SafeZones))
	s.rebalances.Set(float64(r.Rebalances))
	s.tcpBytes.Set(float64(r.TCPBytes))
}

// Close is a no-op: Prometheus metrics persist for the registry's
// lifetime.
func (s *PrometheusSink) Close() error { return nil }
