package models

import "strings"

// EnvelopeError lists the required envelope fields a message arrived without.
type EnvelopeError struct {
	Missing []string
}

func (e *EnvelopeError) Error() string {
	return "invalid message envelope: missing " + strings.Join(e.Missing, ", ")
}

// ValidateMessageEnvelope checks the fields every consumer relies on. Messages
// failing it cannot be routed and are dead-lettered without retries.
func ValidateMessageEnvelope(msg *MessageEnvelope) error {
	if msg == nil {
		return &EnvelopeError{Missing: []string{"envelope"}}
	}

	var missing []string
	if msg.ID == "" {
		missing = append(missing, "id")
	}
	if msg.Type == "" {
		missing = append(missing, "type")
	}
	if msg.Timestamp.IsZero() {
		missing = append(missing, "timestamp")
	}
	if msg.Payload == nil {
		missing = append(missing, "payload")
	}

	if len(missing) > 0 {
		return &EnvelopeError{Missing: missing}
	}
	return nil
}
