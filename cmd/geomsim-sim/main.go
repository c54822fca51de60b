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

// Command geomsim-sim drives a continuous distributed monitoring run
// end to end: it loads a query description, generates a synthetic
// uniform stream, partitions it across simulated sites by rendezvous
// hashing, and feeds it through one of the SGM/AGM/FGM coordinators
// while reporting the resulting estimate and simulated traffic.
//
// Usage:
//
//	geomsim-sim -query query.json -records 200000 -http :8090 \
//	    -sample 2000 -out results.jsonl -metrics :9095
package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geomsim/internal/config"
	"geomsim/internal/eca"
	"geomsim/internal/httpapi"
	"geomsim/internal/network"
	"geomsim/internal/protocol"
	"geomsim/internal/query"
	"geomsim/internal/reporting"
	"geomsim/internal/stream"
	"geomsim/internal/telemetry/traffic"
	"geomsim/pkg/agms"
)

// runner is the common surface every GM coordinator exposes, letting
// main drive any of them identically.
type runner interface {
	ApplyRecordAt(idx int, op int, key agms.KeyType, upd float64)
	CurrentQest() float64
	CurrentResults() protocol.Results
}

func main() {
	queryPath := flag.String("query", "", "path to a continuous-query JSON description (required)")
	records := flag.Int("records", 200000, "number of stream records to generate")
	sampleEvery := flag.Int("sample", 2000, "emit a Qest sample every N records")
	outPath := flag.String("out", "", "JSONL output path for samples/results; empty logs instead")
	httpAddr := flag.String("http", ":8090", "introspection HTTP listen address; empty disables it")
	metricsAddr := flag.String("metrics", "", "Prometheus /metrics listen address; empty disables it")
	flag.Parse()

	if *queryPath == "" {
		log.Fatal("geomsim-sim: -query is required")
	}
	if *records <= 0 {
		*records = 200000
	}
	if *sampleEvery <= 0 {
		*sampleEvery = 2000
	}

	f, err := os.Open(*queryPath)
	if err != nil {
		log.Fatalf("geomsim-sim: open query: %v", err)
	}
	q, err := config.Load(f)
	_ = f.Close()
	if err != nil {
		log.Fatalf("geomsim-sim: load query: %v", err)
	}

	traffic.Enable(traffic.Config{Enabled: true, MetricsAddr: *metricsAddr})

	var sink reporting.ResultSink
	if *outPath != "" {
		fs, err := reporting.NewFileSink(*outPath)
		if err != nil {
			log.Fatalf("geomsim-sim: open output sink: %v", err)
		}
		sink = fs
	} else {
		sink = reporting.LogSink{}
	}
	defer sink.Close()

	proj := agms.NewProjection(q.Depth, q.Width, q.Seed)

	var qstate query.State
	var label string
	switch q.Type {
	case "selfjoin":
		e0 := make([]float64, proj.Size())
		qstate = query.NewSelfJoinState(proj, q.Beta, q.Eikonal, e0)
		label = query.StringWithBeta(query.SelfJoin, query.Operands{q.Stream1}, q.Beta)
	case "join":
		e0 := make([]float64, 2*proj.Size())
		qstate = query.NewTwoWayJoinState(proj, q.Beta, q.Eikonal, q.Stream1, q.Stream2, e0)
		label = query.StringWithBeta(query.Join, query.Operands{q.Stream1, q.Stream2}, q.Beta)
	default:
		log.Fatalf("geomsim-sim: unsupported query type %q", q.Type)
	}

	stateSize := qstate.StateSize()
	nodes := make([]*protocol.Node, q.Sites)
	for i := range nodes {
		nodes[i] = protocol.NewNode(i, q.Sites, stateSize, proj)
	}

	reg := network.NewRegistry()
	net := network.NewNetwork(reg)
	rng := rand.New(rand.NewSource(q.Seed))

	rebalance, err := protocol.ParseRebalanceAlgorithm(q.Rebalance)
	if err != nil {
		log.Fatalf("geomsim-sim: %v", err)
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

	if *httpAddr != "" {
		coord, ok := rn.(httpapi.Coordinator)
		if ok {
			srv := httpapi.NewServer(coord, net)
			go func() {
				if err := srv.ListenAndServe(*httpAddr); err != nil {
					log.Printf("geomsim-sim: http server exited: %v", err)
				}
			}()
			log.Printf("geomsim-sim: introspection endpoint on %s", *httpAddr)
		}
	}

	gen := stream.NewUniformGenerator(q.Seed, 2, q.Sites*4, 1<<20)
	assigner := stream.NewRendezvousAssigner(q.Sites)

	var warmup stream.WarmupBuffer
	if q.WarmupRecords > 0 {
		warmup.Fill(gen, q.WarmupRecords)
	}

	engine := eca.New()
	dispatch := func(r stream.Record) {
		var op int
		switch {
		case q.Type == "selfjoin" && r.StreamID == q.Stream1:
			op = 0
		case q.Type == "join" && r.StreamID == q.Stream1:
			op = 0
		case q.Type == "join" && r.StreamID == q.Stream2:
			op = 1
		default:
			return
		}
		site := assigner.Assign(r.SourceID)
		rn.ApplyRecordAt(site, op, r.Key, r.Upd)
	}
	for _, r := range warmup.Records() {
		dispatch(r)
	}

	var pending stream.Record
	var lastBytes, lastTCP int64
	var lastRounds, lastSub, lastSZ, lastRbl int

	sampleDue := eca.EveryNTimes(*sampleEvery)
	engine.On("record", func() { dispatch(pending) })
	engine.On("record", eca.Gate(sampleDue, func() {
		res := rn.CurrentResults()
		_, bytes, tcpBytes := net.Totals()
		traffic.ObserveMessage(int(bytes-lastBytes), int(tcpBytes-lastTCP))
		for j := 0; j < res.Rounds-lastRounds; j++ {
			traffic.ObserveRound(rn.CurrentQest())
		}
		for j := 0; j < res.Subrounds-lastSub; j++ {
			traffic.ObserveSubround()
		}
		for j := 0; j < res.SafeZonesSent-lastSZ; j++ {
			traffic.ObserveSafeZoneSent()
		}
		traffic.ObserveRebalance(res.RebalanceSetTotal - lastRbl)
		traffic.SetActiveSites(q.Sites)
		lastBytes, lastTCP = bytes, tcpBytes
		lastRounds, lastSub, lastSZ, lastRbl = res.Rounds, res.Subrounds, res.SafeZonesSent, res.RebalanceSetTotal

		sink.OnSample(reporting.QestSample{StreamCount: uint64(pending.TS), Qest: rn.CurrentQest()})
	}))

	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		close(stop)
	}()

	for i := 0; i < *records; i++ {
		select {
		case <-stop:
			i = *records
			continue
		default:
		}
		pending = gen.Next()
		engine.Emit("record")
		engine.Run()
	}

	res := rn.CurrentResults()
	msgs, bytes, tcpBytes := net.Totals()
	sink.OnResult(reporting.ResultRow{
		Query:             label,
		Protocol:          q.Protocol,
		Sites:             q.Sites,
		Rounds:            res.Rounds,
		Subrounds:         res.Subrounds,
		SafeZones:         res.SafeZonesSent,
		Rebalances:        res.RebalanceSetTotal,
		Messages:          msgs,
		Bytes:             bytes,
		TCPBytes:          tcpBytes,
		FinalQest:         rn.CurrentQest(),
	})

	log.Printf("geomsim-sim: finished %s after %d records: qest=%.6g rounds=%d", label, *records, rn.CurrentQest(), res.Rounds)
	time.Sleep(50 * time.Millisecond)
}
