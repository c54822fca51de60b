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

// Package network simulates the point-to-point RPC traffic of the
// protocol layer: no sockets, no latency, just a per-channel byte and
// message tally with a TCP-segment cost model, so a run can report how
// much it would have cost on the wire.
package network

import "fmt"

// MethodCode is a 32-bit code uniquely identifying (interface, method,
// direction): [interface-bits | method-bits | method-bits | response-bit].
// Request and response codes for the same method share every bit except
// the response bit.
type MethodCode uint32

const (
	interfaceShift = 17
	methodShift    = 1
	responseBit    = 1
)

// Registry assigns stable MethodCodes to (interface, method) pairs
// declared via Declare, and tracks which are one-way (no response leg).
type Registry struct {
	interfaces map[string]uint32
	methods    map[string]map[string]methodEntry
	nextIface  uint32
}

type methodEntry struct {
	code   MethodCode
	oneWay bool
}

// NewRegistry builds an empty RPC registry.
func NewRegistry() *Registry {
	return &Registry{
		interfaces: make(map[string]uint32),
		methods:    make(map[string]map[string]methodEntry),
	}
}

// Declare registers a method on an interface, assigning it a fresh
// 32-bit code if it hasn't been declared before. oneWay methods never
// charge a response transmission.
func (r *Registry) Declare(iface, method string, oneWay bool) MethodCode {
	ifaceID, ok := r.interfaces[iface]
	if !ok {
		r.nextIface++
		ifaceID = r.nextIface
		r.interfaces[iface] = ifaceID
		r.methods[iface] = make(map[string]methodEntry)
	}
	if e, ok := r.methods[iface][method]; ok {
		return e.code
	}
	methodID := uint32(len(r.methods[iface]) + 1)
	code := MethodCode(ifaceID<<interfaceShift | methodID<<methodShift)
	r.methods[iface][method] = methodEntry{code: code, oneWay: oneWay}
	return code
}

// OneWay reports whether method was declared one-way.
func (r *Registry) OneWay(iface, method string) bool {
	return r.methods[iface][method].oneWay
}

// ResponseCode returns the response code for a request code (the same
// bits with the response bit set).
func (c MethodCode) ResponseCode() MethodCode { return c | responseBit }

func (c MethodCode) String() string { return fmt.Sprintf("rpc(%#x)", uint32(c)) }
