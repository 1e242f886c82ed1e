package domain

import (
	"fmt"
	"strings"
	"time"
)

// DispatchStatus is the outcome of the best-effort out-of-band delivery
// attempt. It is set once when the record is created and never re-evaluated.
type DispatchStatus string

const (
	DispatchSent   DispatchStatus = "SENT"
	DispatchFailed DispatchStatus = "FAILED"
)

func (s DispatchStatus) String() string { return string(s) }

func (s DispatchStatus) IsValid() bool {
	switch s {
	case DispatchSent, DispatchFailed:
		return true
	}
	return false
}

func ParseDispatchStatusFromString(s string) (DispatchStatus, error) {
	st := DispatchStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid dispatch status %q", ErrValidation, s)
	}
	return st, nil
}

// KindUndefined is the wire default when an event carries no type tag.
// Kind is an open tag, not an exhaustive enum.
const KindUndefined = "UNDEFINED"

// Notification is a stored notification record. Recipient and CreatedAt form
// the ordering index partition for history retrieval. Read is monotone:
// false to true, never back.
type Notification struct {
	ID              string
	Recipient       string
	Kind            string
	Subject         string
	Body            string
	DispatchStatus  DispatchStatus
	Read            bool
	RelatedEntityID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if strings.TrimSpace(n.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	if !n.DispatchStatus.IsValid() {
		return fmt.Errorf("%w: invalid dispatch status %q", ErrValidation, n.DispatchStatus)
	}
	return nil
}

// IsOwnedBy reports whether identity may act on this record. Ownership is the
// sole authorization check for read-state transitions.
func (n *Notification) IsOwnedBy(identity string) bool {
	return n.Recipient == identity
}
