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

// Package reporting emits the per-round and per-sample results a
// monitoring run produces: the estimate's drift over time, and the
// communication cost that bought it.
package reporting

// QestSample is one point in the estimate's time series.
type QestSample struct {
	StreamCount uint64
	Qest        float64
	TrueValue   float64 // 0 if unknown / not tracked this run
}

// ResultRow is the summary a run emits once it finishes: the final
// estimate alongside the traffic it cost to maintain.
type ResultRow struct {
	Query       string
	Protocol    string
	Sites       int
	Rounds      int
	Subrounds   int
	SafeZones   int
	Rebalances  int
	Messages    int64
	Bytes       int64
	TCPBytes    int64
	FinalQest   float64
}

// ResultSink receives a run's samples and final row. Implementations
// must be safe to call from a single goroutine driving the ECA engine;
// none of the sinks here need to be concurrency-safe.
type ResultSink interface {
	OnSample(s QestSample)
	OnResult(r ResultRow)
	Close() error
}
