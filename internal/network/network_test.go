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

import "testing"

func TestRegistry_StableCodes(t *testing.T) {
	r := NewRegistry()
	c1 := r.Declare("coordinator", "local_violation", false)
	c2 := r.Declare("coordinator", "local_violation", false)
	if c1 != c2 {
		t.Fatalf("expected stable code across redeclaration, got %v != %v", c1, c2)
	}
	c3 := r.Declare("coordinator", "get_drift", true)
	if c3 == c1 {
		t.Fatalf("expected distinct codes for distinct methods")
	}
	if !r.OneWay("coordinator", "get_drift") {
		t.Fatal("expected get_drift to be registered one-way")
	}
}

func TestMethodCode_ResponseBitDiffersOnlyInResponseBit(t *testing.T) {
	r := NewRegistry()
	req := r.Declare("node", "set_drift", false)
	resp := req.ResponseCode()
	if req == resp {
		t.Fatal("expected response code to differ from request code")
	}
	if req|1 != resp {
		t.Fatalf("expected response code to be request|1, got %#x vs %#x", resp, req|1)
	}
}

func TestChannel_TCPBytesModel(t *testing.T) {
	ch := &Channel{Bytes: 2048}
	if got, want := ch.TCPBytes(), int64(2048+40*2); got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
	ch2 := &Channel{Bytes: 1}
	if got, want := ch2.TCPBytes(), int64(1+40); got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
	ch3 := &Channel{Bytes: 0}
	if got := ch3.TCPBytes(); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestSketchUpdatePayload_PicksCheaperEncoding(t *testing.T) {
	p := SketchUpdatePayload{SketchSize: 100, Updates: 5}
	if got, want := p.ByteSize(), int64(40); got != want {
		t.Fatalf("few updates should be cheaper: got %d, want %d", got, want)
	}
	p2 := SketchUpdatePayload{SketchSize: 10, Updates: 1000}
	if got, want := p2.ByteSize(), int64(40); got != want {
		t.Fatalf("small sketch should be cheaper: got %d, want %d", got, want)
	}
}

func TestNetwork_CallTalliesRequestAndResponse(t *testing.T) {
	n := NewNetwork(NewRegistry())
	n.Call(1, 0, "coordinator", "local_violation", Bytes(16), Bytes(8))

	messages, bytes, tcpBytes := n.Totals()
	if messages != 2 {
		t.Fatalf("expected 2 messages (request+response), got %d", messages)
	}
	if bytes != 24 {
		t.Fatalf("expected 24 raw bytes, got %d", bytes)
	}
	if tcpBytes <= bytes {
		t.Fatalf("expected tcp-model bytes to include segment overhead, got %d <= %d", tcpBytes, bytes)
	}
	if n.ChannelCount() != 2 {
		t.Fatalf("expected 2 channels (request direction + response direction), got %d", n.ChannelCount())
	}
}

func TestNetwork_OneWayCallHasNoResponseChannel(t *testing.T) {
	n := NewNetwork(NewRegistry())
	n.Call(1, 0, "coordinator", "set_drift", Bytes(32), nil)

	messages, _, _ := n.Totals()
	if messages != 1 {
		t.Fatalf("expected 1 message for a one-way call, got %d", messages)
	}
	if n.ChannelCount() != 1 {
		t.Fatalf("expected 1 channel for a one-way call, got %d", n.ChannelCount())
	}
}
