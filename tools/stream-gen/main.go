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

// stream-gen emits a synthetic uniform stream of (stream, source, key,
// update) records as newline-delimited JSON, independent of any
// monitoring run. Useful for recording a fixed stream to replay across
// multiple protocol configurations for an apples-to-apples comparison.
//
// Usage:
//
//	stream-gen -n 500000 -streams 2 -sources 16 -keys 1000000 -seed 7 > stream.jsonl
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"geomsim/internal/stream"
	"geomsim/pkg/agms"
)

func main() {
	n := flag.Int("n", 500000, "number of records to emit")
	streams := flag.Int("streams", 2, "number of distinct stream ids")
	sources := flag.Int("sources", 16, "number of distinct source ids")
	keys := flag.Int64("keys", 1000000, "key space size")
	seed := flag.Int64("seed", 7, "generator seed")
	out := flag.String("out", "", "output path; empty writes to stdout")
	flag.Parse()

	if *n <= 0 || *streams <= 0 || *sources <= 0 || *keys <= 0 {
		fmt.Fprintln(os.Stderr, "stream-gen: -n, -streams, -sources and -keys must all be > 0")
		os.Exit(2)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "stream-gen: create %s: %v\n", *out, err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	bw := bufio.NewWriterSize(w, 1<<16)
	defer bw.Flush()

	gen := stream.NewUniformGenerator(*seed, *streams, *sources, agms.KeyType(*keys))
	enc := json.NewEncoder(bw)
	for i := 0; i < *n; i++ {
		if err := enc.Encode(gen.Next()); err != nil {
			fmt.Fprintf(os.Stderr, "stream-gen: encode record %d: %v\n", i, err)
			os.Exit(1)
		}
	}
}
