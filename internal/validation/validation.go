package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goland-group/aguimock/internal/protocol"
)

// uuidRegex matches standard UUID format
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidateUUID checks if the string is a valid UUID
func ValidateUUID(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if !uuidRegex.MatchString(id) {
		return fmt.Errorf("invalid UUID format: %s", id)
	}
	return nil
}

// ValidateSessionID validates a conversation/session identifier. Empty is
// allowed: the first run of a conversation carries no identifier.
func ValidateSessionID(id string) error {
	if id == "" {
		return nil
	}
	return ValidateUUID(id)
}

// ValidateMessage checks the user message of a run request
func ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message is required and must be a non-empty string")
	}
	return nil
}

// ValidateFeedbackType checks that a feedback type is one of the accepted
// values
func ValidateFeedbackType(feedbackType string) error {
	switch feedbackType {
	case protocol.FeedbackPositive, protocol.FeedbackNegative:
		return nil
	default:
		return fmt.Errorf("feedback_type must be %q or %q",
			protocol.FeedbackPositive, protocol.FeedbackNegative)
	}
}
