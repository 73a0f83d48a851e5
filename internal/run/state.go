// Package run tracks the lifecycle of a single agent run on the client.
//
// state.go - Run state machine
//
// Run status is a single tagged Phase rather than independent boolean
// flags (connected, thinking, streaming) so that impossible combinations
// cannot be represented.
package run

import (
	"sync"

	"github.com/goland-group/aguimock/internal/protocol"
)

// Phase is the lifecycle phase of one run.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseConnecting Phase = "connecting"
	PhaseThinking   Phase = "thinking"
	PhaseStreaming  Phase = "streaming"
	PhaseDone       Phase = "done"
	PhaseError      Phase = "error"
	PhaseStopped    Phase = "stopped"
)

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseError || p == PhaseStopped
}

// genericError is shown when an error event carries no usable message.
const genericError = "Error desconocido"

// State is an immutable snapshot of a run, safe to hand to a UI layer.
type State struct {
	Phase     Phase
	SessionID string

	// Status is the thinking sub-step label, when the server signals one.
	Status string

	// Text is the accumulated assistant response so far.
	Text string

	// Committed is true once the final complete message has been observed.
	Committed bool

	ErrMessage string
	ErrCode    string
}

// Machine consumes decoded stream events for one run and exposes the
// resulting state. A Machine is single-use: each run starts a fresh one.
// Apply is driven by the transport goroutine while Cancel may arrive from
// the caller at any time, so all mutation is serialized by a mutex; a
// cancellation observed mid-stream prevents every later event from that
// run from being applied, even ones already decoded.
type Machine struct {
	mu        sync.Mutex
	state     State
	cancelled bool
	onChange  func(State)
}

// NewMachine creates a run machine in the idle phase. onChange, if not
// nil, is invoked with a snapshot after every state change. It runs with
// the machine lock held and must not call back into the machine.
func NewMachine(onChange func(State)) *Machine {
	return &Machine{
		state:    State{Phase: PhaseIdle},
		onChange: onChange,
	}
}

// Start marks the run as connecting. Called when the request is opened.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Phase != PhaseIdle {
		return
	}
	m.state.Phase = PhaseConnecting
	m.publish()
}

// Apply feeds one decoded event into the machine. Events arriving after
// cancellation or a terminal phase are discarded.
func (m *Machine) Apply(ev protocol.StreamEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelled || m.state.Phase.Terminal() {
		return
	}

	switch ev.Kind {
	case protocol.EventStart:
		if m.state.Phase != PhaseConnecting {
			return
		}
		m.state.Phase = PhaseThinking
		if ev.SessionID != "" {
			m.state.SessionID = ev.SessionID
		}

	case protocol.EventThinking:
		// Only refreshes the status label while already thinking. A stray
		// thinking event mid-stream must not regress the phase.
		if m.state.Phase != PhaseThinking {
			return
		}
		m.state.Status = ev.Message

	case protocol.EventMessageStart:
		if m.state.Phase != PhaseThinking {
			return
		}
		m.state.Phase = PhaseStreaming
		m.state.Status = ""
		m.state.Text = ""
		m.state.Committed = false

	case protocol.EventMessage:
		if m.state.Phase != PhaseStreaming {
			return
		}
		if ev.IsComplete {
			// The final event carries the full accumulated text.
			m.state.Text = ev.Content
			m.state.Committed = true
		} else {
			m.state.Text += ev.Content
		}

	case protocol.EventDone:
		m.state.Phase = PhaseDone
		if ev.SessionID != "" && m.state.SessionID == "" {
			m.state.SessionID = ev.SessionID
		}

	case protocol.EventError:
		m.state.Phase = PhaseError
		m.state.ErrMessage = ev.Error
		if m.state.ErrMessage == "" {
			m.state.ErrMessage = genericError
		}
		m.state.ErrCode = ev.Code

	default:
		// Unrecognized events carry no transition.
		return
	}

	m.publish()
}

// Fail records a transport-level failure. No-op once terminal.
func (m *Machine) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelled || m.state.Phase.Terminal() {
		return
	}
	m.state.Phase = PhaseError
	m.state.ErrCode = protocol.CodeInternalError
	if err != nil {
		m.state.ErrMessage = err.Error()
	} else {
		m.state.ErrMessage = genericError
	}
	m.publish()
}

// Cancel stops the run. Every event decoded after this point is dropped,
// regardless of how far the server got.
func (m *Machine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Phase.Terminal() {
		return
	}
	m.cancelled = true
	m.state.Phase = PhaseStopped
	m.publish()
}

// State returns the current snapshot.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// publish invokes onChange with the current snapshot. Caller holds mu.
func (m *Machine) publish() {
	if m.onChange != nil {
		m.onChange(m.state)
	}
}
