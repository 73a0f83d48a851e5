// Package transport is the client side of the wire: it opens runs against
// the agent server, feeds the raw SSE stream through the protocol decoder,
// and exposes the one-shot endpoints (feedback, legacy chat, health).
//
// The driver is deliberately dumb about run semantics. It delivers decoded
// events to a sink in wire order and records transport failures on the
// handle; interpreting the events is the run state machine's job.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/goland-group/aguimock/internal/protocol"
)

const (
	runPath      = "/api/ag-ui/run"
	feedbackPath = "/api/ag-ui/feedback"
	chatPath     = "/api/chat"
	healthPath   = "/api/health"

	readChunkSize = 4096
)

// Client talks to one agent server.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// NewClient creates a driver for the server at baseURL. The HTTP client
// carries no overall timeout; streams are bounded by the run context.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		log:     slog.Default(),
	}
}

// Handle tracks one in-flight run.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Cancel aborts the run's HTTP request. Safe to call more than once and
// after the run has finished.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed when no further events will be delivered.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err reports the transport failure that ended the run, if any. Context
// cancellation is not a failure. Valid after Done is closed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Handle) setErr(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

// OpenRun submits a run and streams its events to sink, in wire order,
// from a single goroutine. When the server rejects the run before any
// stream bytes flow, the JSON error body is synthesized into one
// agent:error event so the caller observes a uniform event sequence.
func (c *Client) OpenRun(ctx context.Context, req *protocol.RunRequest, sink func(protocol.StreamEvent)) (*Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req.Body())
	if err != nil {
		return nil, fmt.Errorf("failed to encode run request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+runPath, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build run request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open run: %w", err)
	}

	h := &Handle{cancel: cancel, done: make(chan struct{})}

	if resp.StatusCode != http.StatusOK {
		apiErr := decodeAPIError(resp)
		_ = resp.Body.Close()
		cancel()
		sink(protocol.StreamEvent{
			Kind: protocol.EventError,
			Payload: protocol.Payload{
				Error:     apiErr.Error,
				Code:      apiErr.Code,
				Timestamp: protocol.Now(),
			},
		})
		close(h.done)
		return h, nil
	}

	go c.readStream(ctx, resp.Body, sink, h)
	return h, nil
}

// readStream pumps the response body through the decoder until the stream
// ends, the run context is canceled, or a terminal event arrives.
func (c *Client) readStream(ctx context.Context, body io.ReadCloser, sink func(protocol.StreamEvent), h *Handle) {
	defer close(h.done)
	defer h.cancel()
	defer func() { _ = body.Close() }()

	dec := protocol.NewDecoder()
	buf := make([]byte, readChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, ev := range dec.Write(buf[:n]) {
				sink(ev)
				if ev.Terminal() {
					return
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			c.log.Error("run stream read failed", "error", err)
			h.setErr(fmt.Errorf("run stream interrupted: %w", err))
			return
		}
	}
}

// SendFeedback submits a thumbs up or down vote for one assistant message.
func (c *Client) SendFeedback(ctx context.Context, messageID, feedbackType, sessionID string) error {
	body := protocol.FeedbackBody{
		MessageID:    messageID,
		FeedbackType: feedbackType,
		SessionID:    sessionID,
	}
	var ignored struct{}
	if err := c.postJSON(ctx, feedbackPath, body, &ignored); err != nil {
		return fmt.Errorf("failed to send feedback: %w", err)
	}
	return nil
}

// Ask submits a question to the legacy synchronous chat endpoint.
func (c *Client) Ask(ctx context.Context, question, conversationID string) (*protocol.ChatResponse, error) {
	body := protocol.ChatBody{Question: question, ConversationID: conversationID}
	var resp protocol.ChatResponse
	if err := c.postJSON(ctx, chatPath, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthStatus is the server's liveness report.
type HealthStatus struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// Health checks that the server is up and answering.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &status, nil
}

// postJSON sends one JSON request and decodes a JSON response, mapping
// non-2xx status codes to the server's structured error.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp)
		if apiErr.Code != "" {
			return fmt.Errorf("server rejected request: %s (%s)", apiErr.Error, apiErr.Code)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeAPIError best-effort parses a structured error body, falling back
// to the HTTP status when the body is not the expected JSON.
func decodeAPIError(resp *http.Response) protocol.ErrorResponse {
	var apiErr protocol.ErrorResponse
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil {
		_ = json.Unmarshal(data, &apiErr)
	}
	if apiErr.Error == "" {
		apiErr.Error = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	if apiErr.Code == "" {
		apiErr.Code = protocol.CodeInternalError
	}
	return apiErr
}

// WaitDone blocks until the run finishes or the context expires.
func (h *Handle) WaitDone(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		h.Cancel()
		<-h.done
		return ctx.Err()
	}
}
