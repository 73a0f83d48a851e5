package server

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"time"

	"github.com/goland-group/aguimock/internal/config"
	"github.com/goland-group/aguimock/internal/logger"
	"github.com/goland-group/aguimock/internal/metrics"
	"github.com/goland-group/aguimock/internal/protocol"
	"github.com/goland-group/aguimock/internal/qa"
)

const (
	thinkingLabel  = "Procesando tu pregunta..."
	notFoundAnswer = "Lo siento, no tengo una respuesta para esa pregunta."
	timeoutAnswer  = "La respuesta tardó demasiado"
)

var errClientGone = errors.New("client disconnected")

// runScript emits the fixed event sequence for one run: start, thinking,
// a pause, then either the answer streamed character by character or a
// scripted error, and always a closing done while the client is still
// listening.
type runScript struct {
	cfg *config.ServerConfig
	qa  *qa.Store
}

func newRunScript(cfg *config.ServerConfig, qaStore *qa.Store) *runScript {
	return &runScript{cfg: cfg, qa: qaStore}
}

// play runs the script against w and returns the run outcome label.
// Headers are already sent when play is called, so every failure from
// here on degrades to an in-stream error followed by done.
func (rs *runScript) play(ctx context.Context, w io.Writer, sessionID, message string) (outcome string) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(rs.cfg.StreamTimeoutMs)*time.Millisecond)
	defer cancel()

	enc := protocol.NewEncoder(w)
	emit := func(kind protocol.EventKind, p protocol.Payload) error {
		if err := enc.Encode(kind, p); err != nil {
			return errClientGone
		}
		metrics.RecordEvent(string(kind))
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "run emitter panicked", "panic", r)
			_ = emit(protocol.EventError, protocol.Payload{
				Error:     "Error interno del servidor",
				Code:      protocol.CodeInternalError,
				Timestamp: protocol.Now(),
			})
			_ = emit(protocol.EventDone, protocol.Payload{SessionID: sessionID, Timestamp: protocol.Now()})
			outcome = metrics.OutcomeFailed
		}
	}()

	if err := emit(protocol.EventStart, protocol.Payload{SessionID: sessionID, Timestamp: protocol.Now()}); err != nil {
		return metrics.OutcomeCanceled
	}
	if err := emit(protocol.EventThinking, protocol.Payload{Message: thinkingLabel, Timestamp: protocol.Now()}); err != nil {
		return metrics.OutcomeCanceled
	}

	if err := rs.pause(ctx, rs.thinkingDelay()); err != nil {
		return rs.degrade(ctx, emit, sessionID, err)
	}

	answer, found := rs.qa.Find(message)
	if !found {
		logger.InfoContext(ctx, "no answer for question", "question", message)
		if err := emit(protocol.EventError, protocol.Payload{
			Error:     notFoundAnswer,
			Code:      protocol.CodeAnswerNotFound,
			Timestamp: protocol.Now(),
		}); err != nil {
			return metrics.OutcomeCanceled
		}
		if err := emit(protocol.EventDone, protocol.Payload{SessionID: sessionID, Timestamp: protocol.Now()}); err != nil {
			return metrics.OutcomeCanceled
		}
		return metrics.OutcomeNotFound
	}

	if err := emit(protocol.EventMessageStart, protocol.Payload{Type: "text", Timestamp: protocol.Now()}); err != nil {
		return metrics.OutcomeCanceled
	}

	charDelay := time.Duration(rs.cfg.CharDelayMs) * time.Millisecond
	for _, r := range answer {
		if err := emit(protocol.EventMessage, protocol.Payload{Type: "text", Content: string(r)}); err != nil {
			return metrics.OutcomeCanceled
		}
		if err := rs.pause(ctx, charDelay); err != nil {
			return rs.degrade(ctx, emit, sessionID, err)
		}
	}

	if err := emit(protocol.EventMessage, protocol.Payload{
		Type:       "text",
		Content:    answer,
		IsComplete: true,
		Timestamp:  protocol.Now(),
	}); err != nil {
		return metrics.OutcomeCanceled
	}
	if err := emit(protocol.EventDone, protocol.Payload{SessionID: sessionID, Timestamp: protocol.Now()}); err != nil {
		return metrics.OutcomeCanceled
	}
	return metrics.OutcomeAnswered
}

// degrade closes a run that can no longer complete. A client disconnect
// just stops the stream; a timeout still gets an error and done because
// the client is listening.
func (rs *runScript) degrade(ctx context.Context, emit func(protocol.EventKind, protocol.Payload) error, sessionID string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		logger.WarnContext(ctx, "run exceeded stream timeout")
		_ = emit(protocol.EventError, protocol.Payload{
			Error:     timeoutAnswer,
			Code:      protocol.CodeInternalError,
			Timestamp: protocol.Now(),
		})
		_ = emit(protocol.EventDone, protocol.Payload{SessionID: sessionID, Timestamp: protocol.Now()})
		return metrics.OutcomeFailed
	}
	return metrics.OutcomeCanceled
}

// thinkingDelay draws the pre-answer pause uniformly from the configured
// range.
func (rs *runScript) thinkingDelay() time.Duration {
	min := rs.cfg.ThinkingDelayMinMs
	max := rs.cfg.ThinkingDelayMaxMs
	ms := min
	if max > min {
		ms = min + rand.Intn(max-min+1)
	}
	return time.Duration(ms) * time.Millisecond
}

// pause sleeps for d unless the run context ends first.
func (rs *runScript) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
