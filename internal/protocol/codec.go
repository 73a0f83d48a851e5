// Package protocol defines the AG-UI event contract shared by the mock
// agent server and the client SDK.
//
// codec.go - SSE encoder and incremental decoder
//
// The decoder consumes arbitrarily sized chunks: the transport makes no
// promise that a chunk is line-aligned, let alone event-aligned. Partial
// lines are buffered until the terminating newline arrives, so feeding the
// whole stream one byte at a time yields the same event sequence as one
// big write.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	fieldEvent = "event:"
	fieldData  = "data:"

	// defaultEventName is assumed when a data line arrives without a
	// preceding event line, per the SSE default.
	defaultEventName = "message"
)

// Decoder turns a raw SSE byte stream into an ordered sequence of
// StreamEvents. Malformed JSON payloads are dropped with a warning; they
// never abort the stream. The zero value is not usable; call NewDecoder.
type Decoder struct {
	buf  bytes.Buffer
	name string // pending event name for the current block
	log  *slog.Logger
}

// NewDecoder creates a decoder logging through the default slog logger.
func NewDecoder() *Decoder {
	return &Decoder{log: slog.Default()}
}

// Write feeds one transport chunk into the decoder and returns the events
// completed by it, in wire order.
func (d *Decoder) Write(chunk []byte) []StreamEvent {
	d.buf.Write(chunk)

	var events []StreamEvent
	for {
		raw, ok := d.nextLine()
		if !ok {
			return events
		}
		if ev, ok := d.consumeLine(raw); ok {
			events = append(events, ev)
		}
	}
}

// nextLine extracts one complete line from the buffer, without its newline.
// Returns false when no full line is buffered yet.
func (d *Decoder) nextLine() (string, bool) {
	data := d.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return "", false
	}
	line := string(data[:idx])
	d.buf.Next(idx + 1)
	return strings.TrimSuffix(line, "\r"), true
}

// consumeLine applies one line to the block state machine. It returns a
// decoded event when the line completes a data payload.
func (d *Decoder) consumeLine(line string) (StreamEvent, bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		// Blank line terminates the block.
		d.name = ""
		return StreamEvent{}, false

	case strings.HasPrefix(line, fieldEvent):
		d.name = strings.TrimSpace(strings.TrimPrefix(line, fieldEvent))
		return StreamEvent{}, false

	case strings.HasPrefix(line, fieldData):
		payload := strings.TrimSpace(strings.TrimPrefix(line, fieldData))
		name := d.name
		d.name = ""
		if payload == "" {
			return StreamEvent{}, false
		}
		if name == "" {
			name = defaultEventName
		}
		ev, err := decodeEvent(name, []byte(payload))
		if err != nil {
			d.log.Warn("dropping malformed event payload",
				"event", name, "error", err)
			return StreamEvent{}, false
		}
		return ev, true

	default:
		// Comment lines and unknown fields are ignored per SSE.
		return StreamEvent{}, false
	}
}

// Encoder writes event blocks to a stream, flushing after each one so the
// client sees events as they are emitted rather than on response close.
type Encoder struct {
	w io.Writer
	f http.Flusher
}

// NewEncoder creates an encoder for w. If w implements http.Flusher each
// event is flushed immediately after being written.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		e.f = f
	}
	return e
}

// Encode writes one event block.
func (e *Encoder) Encode(kind EventKind, p Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", kind, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if e.f != nil {
		e.f.Flush()
	}
	return nil
}
