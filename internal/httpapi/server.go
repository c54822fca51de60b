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

// Package httpapi exposes a read-only introspection surface over a
// running monitoring coordinator: its current estimate, round counters
// and simulated traffic, for dashboards and manual polling during a
// simulation.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"geomsim/internal/network"
	"geomsim/internal/protocol"
)

// Coordinator is the subset of a protocol coordinator's state the API
// surfaces. SGM, AGM and FGM all satisfy it directly through their
// CurrentQest and CurrentResults methods.
type Coordinator interface {
	CurrentQest() float64
	CurrentResults() protocol.Results
}

// Server serves introspection endpoints over a running coordinator and
// its simulated network.
type Server struct {
	coord Coordinator
	net   *network.Network
}

// NewServer builds a Server over coord and the network it runs on. net
// may be nil if traffic accounting isn't needed.
func NewServer(coord Coordinator, net *network.Network) *Server {
	return &Server{coord: coord, net: net}
}

// RegisterRoutes wires the server's handlers onto mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.handleStatus)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

type statusResponse struct {
	Qest              float64 `json:"qest"`
	Rounds            int     `json:"rounds"`
	Subrounds         int     `json:"subrounds"`
	SafeZonesSent     int     `json:"safe_zones_sent"`
	UpdatesConsumed   int     `json:"updates_consumed"`
	RebalanceSetTotal int     `json:"rebalance_set_total"`
	Messages          int64   `json:"messages,omitempty"`
	Bytes             int64   `json:"bytes,omitempty"`
	TCPBytes          int64   `json:"tcp_bytes,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res := s.coord.CurrentResults()
	resp := statusResponse{
		Qest:              s.coord.CurrentQest(),
		Rounds:            res.Rounds,
		Subrounds:         res.Subrounds,
		SafeZonesSent:     res.SafeZonesSent,
		UpdatesConsumed:   res.UpdatesConsumed,
		RebalanceSetTotal: res.RebalanceSetTotal,
	}
	if s.net != nil {
		msgs, bytes, tcpBytes := s.net.Totals()
		resp.Messages, resp.Bytes, resp.TCPBytes = msgs, bytes, tcpBytes
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ListenAndServe starts the HTTP server on addr. It includes sane
// timeouts for an introspection-only surface.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return httpServer.ListenAndServe()
}
