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

package network

// chanKey identifies a unidirectional channel: (src, dst, method).
type chanKey struct {
	src, dst int
	method   MethodCode
}

// Channel tallies traffic for one (src, dst, rpc-code) pair.
type Channel struct {
	Messages int64
	Bytes    int64
}

// TCPBytes approximates the wire cost of Bytes over TCP segments of
// 1024 bytes, each carrying a fixed 40-byte header overhead.
func (c *Channel) TCPBytes() int64 {
	return c.Bytes + 40*ceilDiv(c.Bytes, 1024)
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Network owns the registry and the channels it has lazily created, and
// tallies total traffic across the simulated run.
type Network struct {
	Registry *Registry
	channels map[chanKey]*Channel
}

// NewNetwork builds an empty network over the given RPC registry.
func NewNetwork(reg *Registry) *Network {
	return &Network{Registry: reg, channels: make(map[chanKey]*Channel)}
}

func (n *Network) channel(src, dst int, method MethodCode) *Channel {
	k := chanKey{src: src, dst: dst, method: method}
	ch, ok := n.channels[k]
	if !ok {
		ch = &Channel{}
		n.channels[k] = ch
	}
	return ch
}

// ByteSizer is anything an RPC argument/response/compressed-state
// payload can report its transmitted size as.
type ByteSizer interface {
	ByteSize() int64
}

// Bytes wraps a plain byte count as a ByteSizer.
type Bytes int64

// ByteSize returns b itself.
func (b Bytes) ByteSize() int64 { return int64(b) }

// SketchUpdatePayload sizes a compressed sketch+updates pair: always the
// cheaper of shipping the full vector as floats or the raw update pairs.
type SketchUpdatePayload struct {
	SketchSize int // flattened D*L
	Updates    int // number of individual (index,delta) pairs
}

// ByteSize returns min(4*SketchSize, 8*Updates) — 4 bytes/float32 cell
// for the full vector, 8 bytes per (index,delta) update pair.
func (p SketchUpdatePayload) ByteSize() int64 {
	full := int64(4 * p.SketchSize)
	raw := int64(8 * p.Updates)
	if full < raw {
		return full
	}
	return raw
}

// Call records one RPC invocation: iface/method declared via Registry,
// from src to dst, with the given request and (if not one-way) response
// payload sizes.
func (n *Network) Call(src, dst int, iface, method string, req ByteSizer, resp ByteSizer) {
	code := n.Registry.Declare(iface, method, resp == nil)
	reqCh := n.channel(src, dst, code)
	reqCh.Messages++
	reqCh.Bytes += req.ByteSize()

	if resp == nil {
		return
	}
	respCh := n.channel(dst, src, code.ResponseCode())
	respCh.Messages++
	respCh.Bytes += resp.ByteSize()
}

// Totals sums messages, raw bytes, and TCP-model bytes across every
// channel the run has created.
func (n *Network) Totals() (messages, bytes, tcpBytes int64) {
	for _, ch := range n.channels {
		messages += ch.Messages
		bytes += ch.Bytes
		tcpBytes += ch.TCPBytes()
	}
	return
}

// ChannelCount returns the number of distinct (src,dst,method) channels
// created so far.
func (n *Network) ChannelCount() int { return len(n.channels) }
