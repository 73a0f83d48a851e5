package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goland-group/aguimock/internal/protocol"
)

func userRun(message string) *protocol.RunRequest {
	return &protocol.RunRequest{
		Turns: []protocol.Turn{{Role: protocol.RoleUser, Content: message}},
	}
}

// collectRun opens a run against srv and gathers every delivered event.
func collectRun(t *testing.T, srv *httptest.Server, req *protocol.RunRequest) ([]protocol.StreamEvent, *Handle) {
	t.Helper()

	client := NewClient(srv.URL)
	var events []protocol.StreamEvent
	h, err := client.OpenRun(context.Background(), req, func(ev protocol.StreamEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("OpenRun: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.WaitDone(ctx); err != nil {
		t.Fatalf("WaitDone: %v", err)
	}
	return events, h
}

func TestOpenRun_StreamsEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ag-ui/run" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var body protocol.RunBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if body.Message != "hola" {
			t.Errorf("message = %q", body.Message)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		enc := protocol.NewEncoder(w)
		_ = enc.Encode(protocol.EventStart, protocol.Payload{SessionID: "s1"})
		_ = enc.Encode(protocol.EventMessageStart, protocol.Payload{Type: "text"})
		_ = enc.Encode(protocol.EventMessage, protocol.Payload{Type: "text", Content: "ho"})
		_ = enc.Encode(protocol.EventMessage, protocol.Payload{Type: "text", Content: "la"})
		_ = enc.Encode(protocol.EventMessage, protocol.Payload{Type: "text", Content: "hola", IsComplete: true})
		_ = enc.Encode(protocol.EventDone, protocol.Payload{SessionID: "s1"})
	}))
	defer srv.Close()

	events, h := collectRun(t, srv, userRun("hola"))
	if h.Err() != nil {
		t.Fatalf("unexpected transport error: %v", h.Err())
	}

	kinds := make([]protocol.EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	want := []protocol.EventKind{
		protocol.EventStart,
		protocol.EventMessageStart,
		protocol.EventMessage,
		protocol.EventMessage,
		protocol.EventMessage,
		protocol.EventDone,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %d events %v, want %d", len(kinds), kinds, len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d = %q, want %q", i, kinds[i], want[i])
		}
	}
	if events[0].SessionID != "s1" {
		t.Fatalf("start session id = %q", events[0].SessionID)
	}
}

func TestOpenRun_HTTPErrorSynthesizesErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(protocol.ErrorResponse{
			Error: "Mensaje requerido",
			Code:  protocol.CodeMissingMessage,
		})
	}))
	defer srv.Close()

	events, _ := collectRun(t, srv, userRun("hola"))
	if len(events) != 1 {
		t.Fatalf("expected 1 synthesized event, got %d", len(events))
	}
	if events[0].Kind != protocol.EventError {
		t.Fatalf("kind = %q", events[0].Kind)
	}
	if events[0].Code != protocol.CodeMissingMessage {
		t.Fatalf("code = %q", events[0].Code)
	}
	if events[0].Error != "Mensaje requerido" {
		t.Fatalf("error = %q", events[0].Error)
	}
}

func TestOpenRun_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	events, _ := collectRun(t, srv, userRun("hola"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Code != protocol.CodeInternalError {
		t.Fatalf("code = %q", events[0].Code)
	}
}

func TestOpenRun_ValidatesBeforeSending(t *testing.T) {
	client := NewClient("http://127.0.0.1:0")
	_, err := client.OpenRun(context.Background(), &protocol.RunRequest{}, func(protocol.StreamEvent) {})
	if err == nil {
		t.Fatal("expected validation error for empty run")
	}
}

func TestOpenRun_CancelStopsStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		enc := protocol.NewEncoder(w)
		_ = enc.Encode(protocol.EventStart, protocol.Payload{SessionID: "s1"})
		// Hold the stream open until the client gives up.
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(srv.URL)
	got := make(chan protocol.StreamEvent, 16)
	h, err := client.OpenRun(context.Background(), userRun("hola"), func(ev protocol.StreamEvent) {
		got <- ev
	})
	if err != nil {
		t.Fatalf("OpenRun: %v", err)
	}

	select {
	case ev := <-got:
		if ev.Kind != protocol.EventStart {
			t.Fatalf("first event = %q", ev.Kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for start event")
	}

	h.Cancel()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handle to finish after cancel")
	}
	if h.Err() != nil {
		t.Fatalf("cancel must not count as a transport failure: %v", h.Err())
	}
}

func TestOpenRun_TruncatedStreamReportsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Content-Length", "4096")
		enc := protocol.NewEncoder(w)
		_ = enc.Encode(protocol.EventStart, protocol.Payload{SessionID: "s1"})
		// Promise more bytes than we send so the client sees a broken read.
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	h, err := client.OpenRun(context.Background(), userRun("hola"), func(protocol.StreamEvent) {})
	if err != nil {
		t.Fatalf("OpenRun: %v", err)
	}
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
	if h.Err() == nil {
		t.Fatal("expected a transport error from the truncated stream")
	}
}

func TestSendFeedback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ag-ui/feedback" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var body protocol.FeedbackBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad body: %v", err)
		}
		if body.MessageID != "msg_1" || body.FeedbackType != protocol.FeedbackPositive {
			t.Errorf("unexpected body %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if err := client.SendFeedback(context.Background(), "msg_1", protocol.FeedbackPositive, "s1"); err != nil {
		t.Fatalf("SendFeedback: %v", err)
	}
}

func TestSendFeedback_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(protocol.ErrorResponse{
			Error: "feedback_type inválido",
			Code:  protocol.CodeInvalidFeedbackType,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.SendFeedback(context.Background(), "msg_1", "meh", "s1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), protocol.CodeInvalidFeedbackType) {
		t.Fatalf("error should carry the code: %v", err)
	}
}

func TestAsk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(protocol.ChatResponse{
			Answer:    "Son semillas de cáñamo.",
			Question:  "¿Qué son los Hemp Hearts?",
			Timestamp: protocol.Now(),
			Source:    "mock-data",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	resp, err := client.Ask(context.Background(), "¿Qué son los Hemp Hearts?", "")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.Answer != "Son semillas de cáñamo." {
		t.Fatalf("answer = %q", resp.Answer)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthStatus{Status: "ok", Service: "aguimock", Timestamp: protocol.Now()})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	status, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if status.Status != "ok" {
		t.Fatalf("status = %q", status.Status)
	}
}
