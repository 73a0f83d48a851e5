package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/goland-group/aguimock/internal/feedback"
	"github.com/goland-group/aguimock/internal/logger"
	"github.com/goland-group/aguimock/internal/metrics"
	"github.com/goland-group/aguimock/internal/protocol"
	"github.com/goland-group/aguimock/internal/validation"
)

// handleRun validates the submission, then hands the response writer to
// the emitter. Validation failures are plain JSON; once the SSE headers
// go out every failure is reported in-stream.
func (s *Server) handleRun(c *gin.Context) {
	var body protocol.RunBody
	if err := c.ShouldBindJSON(&body); err != nil || validation.ValidateMessage(body.Message) != nil {
		c.JSON(http.StatusBadRequest, protocol.ErrorResponse{
			Error: "Mensaje requerido",
			Code:  protocol.CodeMissingMessage,
		})
		return
	}

	sessionID := body.SessionID
	if err := validation.ValidateSessionID(sessionID); err != nil {
		// A malformed id never aborts the run, the conversation just
		// starts over.
		s.log.Warn("ignoring malformed session id", "session_id", sessionID, "error", err)
		sessionID = ""
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	// Every log line emitted while the stream plays carries the run ids.
	ctx := context.WithValue(c.Request.Context(), logger.ContextKeyRequestID, uuid.New().String())
	ctx = context.WithValue(ctx, logger.ContextKeySessionID, sessionID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeaderNow()

	start := time.Now()
	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	script := newRunScript(s.cfg, s.qa)
	outcome := script.play(ctx, c.Writer, sessionID, strings.TrimSpace(body.Message))
	metrics.RecordRun(outcome, time.Since(start))
}

func (s *Server) handleFeedback(c *gin.Context) {
	var body protocol.FeedbackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, protocol.ErrorResponse{
			Error: "message_id y feedback_type son requeridos",
			Code:  protocol.CodeMissingParams,
		})
		return
	}
	if strings.TrimSpace(body.MessageID) == "" || strings.TrimSpace(body.FeedbackType) == "" {
		c.JSON(http.StatusBadRequest, protocol.ErrorResponse{
			Error: "message_id y feedback_type son requeridos",
			Code:  protocol.CodeMissingParams,
		})
		return
	}
	if err := validation.ValidateFeedbackType(body.FeedbackType); err != nil {
		c.JSON(http.StatusBadRequest, protocol.ErrorResponse{
			Error: "feedback_type debe ser positive o negative",
			Code:  protocol.CodeInvalidFeedbackType,
		})
		return
	}

	rec := &feedback.Feedback{
		MessageID:    body.MessageID,
		FeedbackType: body.FeedbackType,
		SessionID:    body.SessionID,
	}
	if s.feedback != nil {
		if err := s.feedback.Record(rec); err != nil {
			s.log.Error("failed to record feedback", "message_id", body.MessageID, "error", err)
			c.JSON(http.StatusInternalServerError, protocol.ErrorResponse{
				Error: "No se pudo registrar el feedback",
				Code:  protocol.CodeInternalError,
			})
			return
		}
	}
	metrics.RecordFeedback(body.FeedbackType)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"feedback_id": rec.ID,
		"message":     "Feedback recibido",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "aguimock",
		"timestamp": protocol.Now(),
	})
}

// handleChat is the legacy synchronous endpoint kept for clients that
// never adopted the streaming protocol.
func (s *Server) handleChat(c *gin.Context) {
	var body protocol.ChatBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Question) == "" {
		c.JSON(http.StatusBadRequest, protocol.ErrorResponse{
			Error: "Pregunta requerida",
			Code:  protocol.CodeMissingQuestion,
		})
		return
	}

	question := strings.TrimSpace(body.Question)
	answer, ok := s.qa.Find(question)
	if !ok {
		c.JSON(http.StatusNotFound, protocol.ErrorResponse{
			Error: "Lo siento, no tengo una respuesta para esa pregunta.",
			Code:  protocol.CodeAnswerNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, protocol.ChatResponse{
		Answer:         answer,
		Question:       question,
		ConversationID: body.ConversationID,
		Timestamp:      protocol.Now(),
		Source:         "mock-data",
	})
}

func (s *Server) handleQAList(c *gin.Context) {
	questions := s.qa.Questions()
	c.JSON(http.StatusOK, gin.H{
		"count":     len(questions),
		"questions": questions,
	})
}

func (s *Server) handleQASearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, protocol.ErrorResponse{
			Error: "Parámetro q requerido",
			Code:  protocol.CodeMissingParams,
		})
		return
	}
	results := s.qa.Search(query)
	c.JSON(http.StatusOK, gin.H{
		"count":   len(results),
		"results": results,
	})
}
