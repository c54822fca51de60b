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

// Package traffic provides opt-in Prometheus telemetry for the simulated
// network traffic a monitoring run generates: messages, bytes, rounds,
// subrounds and rebalances. All public functions are no-ops when the
// package has not been enabled, so it is safe to call from hot paths
// inside the protocol coordinators.
package traffic

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls the behavior of the traffic module.
//
// Notes:
//   - MetricsAddr, when non-empty, starts a dedicated HTTP server that
//     serves /metrics. If you already expose Prometheus elsewhere
//     (e.g. via internal/httpapi), leave it empty and register
//     promhttp yourself.
type Config struct {
	Enabled     bool
	MetricsAddr string // e.g. ":9090"; empty disables the standalone endpoint
}

var modEnabled atomic.Bool

var (
	messagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geomsim_messages_total",
		Help: "Total simulated RPC calls exchanged between sites and the coordinator",
	})
	bytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geomsim_bytes_total",
		Help: "Total application-level bytes exchanged, as accounted by the simulated network",
	})
	tcpBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geomsim_tcp_bytes_total",
		Help: "Total wire bytes exchanged including simulated TCP/IP framing overhead",
	})
	roundsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geomsim_rounds_total",
		Help: "Total monitoring rounds completed",
	})
	subroundsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geomsim_subrounds_total",
		Help: "Total bitweight subrounds completed (AGM/FGM only)",
	})
	safeZonesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geomsim_safezones_sent_total",
		Help: "Total safe-zone descriptions pushed from the coordinator to sites",
	})
	rebalanceSitesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geomsim_rebalance_sites_total",
		Help: "Total sites pulled into a rebalance set across the run",
	})
	qestGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geomsim_qest",
		Help: "Most recent aggregate query estimate",
	})
	activeSitesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geomsim_active_sites",
		Help: "Number of sites currently participating in the run",
	})
)

func init() {
	prometheus.MustRegister(messagesTotal, bytesTotal, tcpBytesTotal, roundsTotal,
		subroundsTotal, safeZonesSentTotal, rebalanceSitesTotal, qestGauge, activeSitesGauge)
}

// Enable turns on metric recording and, if cfg.MetricsAddr is set, starts
// a dedicated /metrics endpoint. Safe to call multiple times.
func Enable(cfg Config) {
	modEnabled.Store(cfg.Enabled)
	if cfg.MetricsAddr != "" {
		startMetricsEndpoint(cfg.MetricsAddr)
	}
}

// Enabled reports whether the traffic module is recording metrics.
func Enabled() bool { return modEnabled.Load() }

// ObserveMessage records one simulated RPC call of the given application
// and wire byte sizes.
func ObserveMessage(appBytes, tcpBytes int) {
	if !modEnabled.Load() {
		return
	}
	messagesTotal.Inc()
	bytesTotal.Add(float64(appBytes))
	tcpBytesTotal.Add(float64(tcpBytes))
}

// ObserveRound records one completed monitoring round and its estimate.
func ObserveRound(qest float64) {
	if !modEnabled.Load() {
		return
	}
	roundsTotal.Inc()
	qestGauge.Set(qest)
}

// ObserveSubround records one completed bitweight subround.
func ObserveSubround() {
	if !modEnabled.Load() {
		return
	}
	subroundsTotal.Inc()
}

// ObserveSafeZoneSent records one safe-zone push to a site.
func ObserveSafeZoneSent() {
	if !modEnabled.Load() {
		return
	}
	safeZonesSentTotal.Inc()
}

// ObserveRebalance records n sites pulled into a rebalance set.
func ObserveRebalance(n int) {
	if !modEnabled.Load() || n <= 0 {
		return
	}
	rebalanceSitesTotal.Add(float64(n))
}

// SetActiveSites reports the current number of participating sites.
func SetActiveSites(n int) {
	if !modEnabled.Load() {
		return
	}
	activeSitesGauge.Set(float64(n))
}

// startMetricsEndpoint exposes /metrics on addr in a background goroutine.
func startMetricsEndpoint(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
