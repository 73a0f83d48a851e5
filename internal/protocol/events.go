// Package protocol defines the AG-UI event contract shared by the mock
// agent server and the client SDK.
//
// events.go - Event taxonomy and wire payloads
//
// This file contains:
// - EventKind constants for the named SSE events
// - StreamEvent, the decoded form of one event block
// - Payload, the JSON body carried by every event
// - RunRequest/Turn, the client-side run submission model
//
// The wire format is one SSE block per event:
//
//	event: <kind>
//	data: <json>
//	<blank line>
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventKind identifies a named SSE event on the wire.
type EventKind string

const (
	EventStart        EventKind = "agent:start"
	EventThinking     EventKind = "agent:thinking"
	EventMessageStart EventKind = "agent:message_start"
	EventMessage      EventKind = "agent:message"
	EventError        EventKind = "agent:error"
	EventDone         EventKind = "agent:done"

	// EventUnrecognized marks an event whose name the decoder does not
	// know. It is passed through to the caller, never treated as an error.
	EventUnrecognized EventKind = "unrecognized"
)

// Error codes carried by error responses and agent:error events.
const (
	CodeMissingMessage      = "MISSING_MESSAGE"
	CodeMissingQuestion     = "MISSING_QUESTION"
	CodeMissingParams       = "MISSING_PARAMS"
	CodeInvalidFeedbackType = "INVALID_FEEDBACK_TYPE"
	CodeAnswerNotFound      = "ANSWER_NOT_FOUND"
	CodeInternalError       = "INTERNAL_ERROR"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Feedback types accepted by the feedback endpoint.
const (
	FeedbackPositive = "positive"
	FeedbackNegative = "negative"
)

// Payload is the JSON body of an event block. Fields are kind-specific;
// unused fields are omitted on the wire.
type Payload struct {
	SessionID  string `json:"session_id,omitempty"` // start, done
	Message    string `json:"message,omitempty"`    // thinking status label, error detail
	Type       string `json:"type,omitempty"`       // message: always "text"
	Content    string `json:"content,omitempty"`    // message: delta or full text
	IsComplete bool   `json:"isComplete,omitempty"` // message: true on the final event
	Error      string `json:"error,omitempty"`      // error: human-readable
	Code       string `json:"code,omitempty"`       // error: machine code
	Timestamp  string `json:"timestamp,omitempty"`  // RFC 3339
}

// StreamEvent is one decoded event with its kind resolved.
type StreamEvent struct {
	Kind EventKind
	Payload

	// RawKind holds the wire name for EventUnrecognized events.
	RawKind string
}

// Terminal reports whether this event ends the scripted sequence.
func (e *StreamEvent) Terminal() bool {
	return e.Kind == EventDone
}

// Now formats the current time the way the wire expects.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Turn is one conversational turn.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RunRequest is a single run submission: the conversation so far, with the
// new user turn as the last element. SessionID is empty on the first run of
// a conversation; the server mints one and returns it in agent:start.
type RunRequest struct {
	SessionID string
	Turns     []Turn
}

// Validate checks the run request invariants before it goes on the wire.
func (r *RunRequest) Validate() error {
	if len(r.Turns) == 0 {
		return fmt.Errorf("run request has no turns")
	}
	last := r.Turns[len(r.Turns)-1]
	if last.Role != RoleUser {
		return fmt.Errorf("last turn must be a user turn, got %q", last.Role)
	}
	if strings.TrimSpace(last.Content) == "" {
		return fmt.Errorf("user message is empty")
	}
	return nil
}

// Message returns the new user message being submitted.
func (r *RunRequest) Message() string {
	if len(r.Turns) == 0 {
		return ""
	}
	return r.Turns[len(r.Turns)-1].Content
}

// RunBody is the HTTP request body for POST /api/ag-ui/run.
type RunBody struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Body converts the request to its wire form.
func (r *RunRequest) Body() RunBody {
	return RunBody{
		Message:   strings.TrimSpace(r.Message()),
		SessionID: r.SessionID,
	}
}

// FeedbackBody is the HTTP request body for POST /api/ag-ui/feedback.
type FeedbackBody struct {
	MessageID    string `json:"message_id"`
	FeedbackType string `json:"feedback_type"`
	SessionID    string `json:"session_id,omitempty"`
}

// ChatBody is the HTTP request body for the legacy POST /api/chat endpoint.
type ChatBody struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the legacy synchronous answer.
type ChatResponse struct {
	Answer         string `json:"answer"`
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id,omitempty"`
	Timestamp      string `json:"timestamp"`
	Source         string `json:"source"`
}

// ErrorResponse is the structured JSON error returned before any SSE
// headers have been sent.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// decodeEvent resolves a wire event name and JSON payload into a
// StreamEvent. Unknown names become EventUnrecognized.
func decodeEvent(name string, data []byte) (StreamEvent, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return StreamEvent{}, fmt.Errorf("malformed event payload: %w", err)
	}

	switch EventKind(name) {
	case EventStart, EventThinking, EventMessageStart, EventMessage, EventError, EventDone:
		return StreamEvent{Kind: EventKind(name), Payload: p}, nil
	default:
		return StreamEvent{Kind: EventUnrecognized, Payload: p, RawKind: name}, nil
	}
}
