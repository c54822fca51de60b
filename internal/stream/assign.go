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

import (
	"strconv"

	rendezvous "github.com/dgryski/go-rendezvous"
)

// RendezvousAssigner maps a record's source id to one of k monitored
// sites using highest-random-weight hashing, so the same source always
// lands on the same site even as sites are added or removed, and so a
// run's site count can differ from the stream's own source cardinality.
type RendezvousAssigner struct {
	r *rendezvous.Rendezvous
	k int
}

// NewRendezvousAssigner builds an assigner over k sites, indexed
// 0..k-1.
func NewRendezvousAssigner(k int) *RendezvousAssigner {
	nodes := make([]string, k)
	for i := range nodes {
		nodes[i] = strconv.Itoa(i)
	}
	return &RendezvousAssigner{r: rendezvous.New(nodes, hashString), k: k}
}

// Assign returns the site index a given source id is routed to.
func (a *RendezvousAssigner) Assign(sourceID int) int {
	if a.k <= 1 {
		return 0
	}
	site, err := strconv.Atoi(a.r.Lookup(strconv.Itoa(sourceID)))
	if err != nil {
		return sourceID % a.k
	}
	return site
}

// hashString is a fast, well-distributed 64-bit hash suitable for
// rendezvous weighting; FNV-1a avoids pulling in a second hash
// dependency purely for this one call site.
func hashString(s string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	var h uint64 = offset64
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}
