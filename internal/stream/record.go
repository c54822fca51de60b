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

// Package stream generates and routes the synthetic update stream a
// simulated run monitors: records tagged with a stream (operand) id, a
// source id (the site that physically received the update), a key, and
// a signed frequency delta.
package stream

import "geomsim/pkg/agms"

// Record is one stream update, matching the shape the AGMS sketches and
// GM nodes consume.
type Record struct {
	StreamID int
	SourceID int
	Key      agms.KeyType
	Upd      float64
	TS       uint64
}
