// Package workflow drives the reorder request: a three-stage machine that gates requests
// and paces the out/in transition around them.
package workflow

import (
	"fmt"
	"sync"
)

type Stage string

const (
	StageIdle Stage = "idle"
	StageOut  Stage = "out"
	StageIn   Stage = "in"
)

type Event string

const (
	EventTrigger Event = "trigger"
	EventOrdered Event = "ordered"
	EventFailed  Event = "failed"
	EventSettled Event = "settled"
)

type transition struct {
	from  Stage
	event Event
}

var transitions = map[transition]Stage{
	{StageIdle, EventTrigger}: StageOut,
	{StageOut, EventOrdered}:  StageIn,
	{StageOut, EventFailed}:   StageIdle,
	{StageIn, EventSettled}:   StageIdle,
}

// Next is the transition table. ok is false for any pair not listed above.
func Next(s Stage, e Event) (Stage, bool) {
	to, ok := transitions[transition{s, e}]
	if !ok {
		return s, false
	}
	return to, true
}

// TransitionError reports an event the current stage does not accept.
type TransitionError struct {
	Stage Stage
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("workflow: %s not allowed in stage %s", e.Event, e.Stage)
}

// Machine holds the current stage. Observer, when set, is called after every accepted
// transition with the lock released.
type Machine struct {
	mu       sync.Mutex
	stage    Stage
	observer func(from, to Stage, e Event)
}

func NewMachine() *Machine {
	return &Machine{stage: StageIdle}
}

func (m *Machine) Observe(fn func(from, to Stage, e Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

func (m *Machine) Stage() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stage == "" {
		return StageIdle
	}
	return m.stage
}

// Fire applies e atomically.
func (m *Machine) Fire(e Event) (Stage, error) {
	m.mu.Lock()
	from := m.stage
	if from == "" {
		from = StageIdle
	}
	to, ok := Next(from, e)
	if !ok {
		m.mu.Unlock()
		return from, &TransitionError{Stage: from, Event: e}
	}
	m.stage = to
	obs := m.observer
	m.mu.Unlock()

	if obs != nil {
		obs(from, to, e)
	}
	return to, nil
}
