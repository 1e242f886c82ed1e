package queue

import (
	"fmt"
	"strings"

	"github.com/pgrabow/notify-hub/internal/domain"
)

// Event is the broker payload that upstream services publish to the work
// queue when something noteworthy happens to a user.
type Event struct {
	TargetUserID    string  `json:"targetUserId"`
	Type            string  `json:"type,omitempty"`
	Subject         string  `json:"subject,omitempty"`
	Message         string  `json:"message"`
	RelatedEntityID *string `json:"relatedEntityId,omitempty"`
	SenderUsername  string  `json:"senderUsername,omitempty"`
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.TargetUserID) == "" {
		return fmt.Errorf("targetUserId is required")
	}
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}

// Kind returns the event type, defaulting missing or blank values so every
// stored notification carries a category.
func (e Event) Kind() string {
	kind := strings.TrimSpace(e.Type)
	if kind == "" {
		return domain.KindUndefined
	}
	return kind
}

// Envelope is the compact payload broadcast to fanout subscribers after a
// notification has been stored.
type Envelope struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (e Envelope) Validate() error {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}
