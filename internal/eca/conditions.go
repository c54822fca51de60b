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

package eca

import "math"

// Condition gates an action: Gate wraps action so it only runs when
// cond() is true, but every event firing still advances the
// condition's internal counters.
type Condition func() bool

// Gate wraps action to run only when cond reports true for this firing.
func Gate(cond Condition, action Action) Action {
	return func() {
		if cond() {
			action()
		}
	}
}

// EveryNTimes returns a condition true on every n-th call (1-indexed:
// the n-th, 2n-th, ...).
func EveryNTimes(n int) Condition {
	if n <= 0 {
		panic("eca: EveryNTimes requires n > 0")
	}
	count := 0
	return func() bool {
		count++
		return count%n == 0
	}
}

// NTimesOutOfN returns a condition true for the first n calls out of
// every window of N, then resets.
func NTimesOutOfN(n, capN int) Condition {
	if n <= 0 || capN <= 0 || n > capN {
		panic("eca: NTimesOutOfN requires 0 < n <= N")
	}
	count := 0
	return func() bool {
		pos := count % capN
		count++
		return pos < n
	}
}

// LevelChanged returns a condition true when func() has moved by more
// than max(relTol*|prev|, absTol) since the last call that returned
// true. The first call always reports a change (there is no prior
// level to compare against).
func LevelChanged(fn func() float64, relTol, absTol float64) Condition {
	first := true
	var prev float64
	return func() bool {
		v := fn()
		if first {
			first = false
			prev = v
			return true
		}
		tol := math.Max(relTol*math.Abs(prev), absTol)
		if math.Abs(v-prev) > tol {
			prev = v
			return true
		}
		return false
	}
}
