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

// Package eca implements a single-threaded, deterministic
// event-condition-action engine: a FIFO event queue feeds a FIFO action
// queue, each event firing its rules' actions in registration order.
package eca

import (
	"container/list"
)

// Event is the simulation's string-typed event schema.
type Event string

const (
	Init        Event = "INIT"
	Done        Event = "DONE"
	StartStream Event = "START_STREAM"
	EndStream   Event = "END_STREAM"
	StartRecord Event = "START_RECORD"
	EndRecord   Event = "END_RECORD"
	Validate    Event = "VALIDATE"
	Report      Event = "REPORT"
	Results     Event = "RESULTS"
)

// Action is a unit of work dispatched from a fired event. An action may
// call Cancel on its own rule; the engine tolerates this and purges the
// rule only after the action returns.
type Action func()

// Rule binds an action to an event, in the order it was registered.
type Rule struct {
	event     Event
	action    Action
	cancelled bool
}

// Cancel marks the rule for removal. Safe to call from within the
// rule's own action.
func (r *Rule) Cancel() { r.cancelled = true }

// pendingAction is what actually sits in the action queue: a snapshot
// of the rule it came from, so cancellation after enqueue but before
// execution is honored.
type pendingAction struct {
	rule *Rule
}

// Engine is the sole scheduler: no goroutines, no locks. Run runs
// to quiescence (event queue and action queue both empty).
type Engine struct {
	rules map[Event][]*Rule

	events  *list.List // of Event
	actions *list.List // of *pendingAction

	current      *pendingAction
	purgeCurrent bool
}

// New builds an empty engine.
func New() *Engine {
	return &Engine{
		rules:   make(map[Event][]*Rule),
		events:  list.New(),
		actions: list.New(),
	}
}

// On registers action to run whenever event fires, returning the Rule
// so the caller can cancel it later (including from within the action
// itself).
func (e *Engine) On(event Event, action Action) *Rule {
	r := &Rule{event: event, action: action}
	e.rules[event] = append(e.rules[event], r)
	return r
}

// Emit appends event to the FIFO event queue.
func (e *Engine) Emit(event Event) {
	e.events.PushBack(event)
}

// Run drains the event queue and every action queue it produces,
// stopping only when both are empty.
func (e *Engine) Run() {
	for {
		if e.actions.Len() > 0 {
			e.stepAction()
			continue
		}
		if e.events.Len() > 0 {
			e.stepEvent()
			continue
		}
		return
	}
}

// stepEvent pops the front event and enqueues its rules' actions, in
// registration order, skipping already-cancelled rules.
func (e *Engine) stepEvent() {
	front := e.events.Front()
	event := front.Value.(Event)
	e.events.Remove(front)

	for _, r := range e.rules[event] {
		if r.cancelled {
			continue
		}
		e.actions.PushBack(&pendingAction{rule: r})
	}
}

// stepAction pops the front action and runs it, purging its rule
// afterward if it cancelled itself mid-run.
func (e *Engine) stepAction() {
	front := e.actions.Front()
	pa := front.Value.(*pendingAction)
	e.actions.Remove(front)

	if pa.rule.cancelled {
		return
	}

	e.current = pa
	e.purgeCurrent = false
	pa.rule.action()
	e.current = nil
	if e.purgeCurrent {
		pa.rule.cancelled = true
		e.prune(pa.rule.event)
	}
}

// Cancel marks r cancelled. If r is the action currently executing,
// the removal from its event's rule list is deferred until the action
// returns — calling Cancel on r from within r's own action is safe.
func (e *Engine) Cancel(r *Rule) {
	r.cancelled = true
	if e.current != nil && e.current.rule == r {
		e.purgeCurrent = true
	}
	e.prune(r.event)
}

// prune drops cancelled rules from the event's rule list, except the
// one currently executing (removed by stepAction once its action
// returns, via purgeCurrent).
func (e *Engine) prune(event Event) {
	rules := e.rules[event]
	out := rules[:0]
	for _, r := range rules {
		if r.cancelled && (e.current == nil || e.current.rule != r) {
			continue
		}
		out = append(out, r)
	}
	e.rules[event] = out
}
