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

// Command geomsim-api runs a continuous-query monitoring instance as a
// long-lived service: a background goroutine keeps feeding it synthetic
// stream records while an HTTP server exposes /status and /healthz for
// live polling, shutting down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geomsim/internal/config"
	"geomsim/internal/httpapi"
	"geomsim/internal/network"
	"geomsim/internal/protocol"
	"geomsim/internal/query"
	"geomsim/internal/stream"
	"geomsim/internal/telemetry/traffic"
	"geomsim/pkg/agms"
)

type runner interface {
	ApplyRecordAt(idx int, op int, key agms.KeyType, upd float64)
	CurrentQest() float64
	CurrentResults() protocol.Results
}

func main() {
	queryPath := flag.String("query", "", "path to a continuous-query JSON description (required)")
	httpAddr := flag.String("http_addr", ":8090", "HTTP listen address")
	metricsAddr := flag.String("metrics_addr", "", "if non-empty, expose Prometheus /metrics on this address")
	recordsPerSecond := flag.Int("rps", 5000, "synthetic records generated per second")
	flag.Parse()

	if *queryPath == "" {
		log.Fatal("geomsim-api: -query is required")
	}

	f, err := os.Open(*queryPath)
	if err != nil {
		log.Fatalf("geomsim-api: open query: %v", err)
	}
	q, err := config.Load(f)
	_ = f.Close()
	if err != nil {
		log.Fatalf("geomsim-api: load query: %v", err)
	}

	traffic.Enable(traffic.Config{Enabled: true, MetricsAddr: *metricsAddr})

	proj := agms.NewProjection(q.Depth, q.Width, q.Seed)

	var qstate query.State
	switch q.Type {
	case "selfjoin":
		qstate = query.NewSelfJoinState(proj, q.Beta, q.Eikonal, make([]float64, proj.Size()))
	case "join":
		qstate = query.NewTwoWayJoinState(proj, q.Beta, q.Eikonal, q.Stream1, q.Stream2, make([]float64, 2*proj.Size()))
	default:
		log.Fatalf("geomsim-api: unsupported query type %q", q.Type)
	}

	nodes := make([]*protocol.Node, q.Sites)
	for i := range nodes {
		nodes[i] = protocol.NewNode(i, q.Sites, qstate.StateSize(), proj)
	}

	reg := network.NewRegistry()
	net := network.NewNetwork(reg)
	rng := rand.New(rand.NewSource(q.Seed))
	rebalance, err := protocol.ParseRebalanceAlgorithm(q.Rebalance)
	if err != nil {
		log.Fatalf("geomsim-api: %v", err)
	}
	cfg := protocol.Config{
		UseCostModel: q.UseCostModel,
		Eikonal:      q.Eikonal,
		Rebalance:    rebalance,
		RblProjDim:   q.RblProjDim,
		EpsilonPsi:   q.EpsilonPsi,
		NaiveMode:    q.NaiveMode,
	}

	var rn runner
	switch q.Protocol {
	case "agm":
		rn = protocol.NewAGM(qstate, nodes, net, reg, cfg, rng)
	case "fgm", "frgm":
		rn = protocol.NewFGM(qstate, nodes, net, reg, cfg, rng)
	default:
		rn = protocol.NewSGM(qstate, nodes, net, reg, cfg, rng)
	}

	gen := stream.NewUniformGenerator(q.Seed, 2, q.Sites*4, 1<<20)
	assigner := stream.NewRendezvousAssigner(q.Sites)

	stopGen := make(chan struct{})
	go func() {
		if *recordsPerSecond <= 0 {
			*recordsPerSecond = 5000
		}
		ticker := time.NewTicker(time.Second / time.Duration(*recordsPerSecond))
		defer ticker.Stop()
		for {
			select {
			case <-stopGen:
				return
			case <-ticker.C:
				r := gen.Next()
				var op int
				switch {
				case q.Type == "selfjoin" && r.StreamID == q.Stream1:
					op = 0
				case q.Type == "join" && r.StreamID == q.Stream1:
					op = 0
				case q.Type == "join" && r.StreamID == q.Stream2:
					op = 1
				default:
					continue
				}
				rn.ApplyRecordAt(assigner.Assign(r.SourceID), op, r.Key, r.Upd)
			}
		}
	}()

	coord, ok := rn.(httpapi.Coordinator)
	if !ok {
		log.Fatal("geomsim-api: coordinator does not satisfy httpapi.Coordinator")
	}
	apiServer := httpapi.NewServer(coord, net)
	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)
	httpServer := &http.Server{Addr: *httpAddr, Handler: mux}

	go func() {
		fmt.Printf("geomsim-api listening on %s\n", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("geomsim-api: listen on %s: %v", *httpAddr, err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	fmt.Println("\ngeomsim-api: shutting down...")
	close(stopGen)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("geomsim-api: server shutdown failed: %v", err)
	}
	fmt.Println("geomsim-api: stopped.")
}
