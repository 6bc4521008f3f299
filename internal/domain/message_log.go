package domain

import (
	"context"
	"time"
)

// MessageOutcome records what happened to a message attempt.
type MessageOutcome string

const (
	OutcomeSent     MessageOutcome = "sent"
	OutcomeBlocked  MessageOutcome = "blocked"
	OutcomeFailed   MessageOutcome = "failed"
	OutcomeReceived MessageOutcome = "received"
)

// MessageDirection distinguishes outbound sends from inbound webhook receipts.
type MessageDirection string

const (
	DirectionOutgoing MessageDirection = "outgoing"
	DirectionIncoming MessageDirection = "incoming"
)

// MessageKind classifies the message body.
type MessageKind string

const (
	KindInvitation   MessageKind = "invitation"
	KindReminder     MessageKind = "reminder"
	KindConfirmation MessageKind = "confirmation"
	KindRSVPResponse MessageKind = "rsvp_response"
)

// MessageLogEntry is one append-only record of a message attempt or receipt.
// swagger:model MessageLogEntry
type MessageLogEntry struct {
	ID         string           `json:"id"`
	TenantID   string           `json:"tenant_id"`
	EventID    *string          `json:"event_id,omitempty"`
	ContactID  *string          `json:"contact_id,omitempty"`
	Phone      string           `json:"phone"`
	Body       string           `json:"body"`
	Kind       MessageKind      `json:"kind"`
	Direction  MessageDirection `json:"direction"`
	Outcome    MessageOutcome   `json:"outcome"`
	ProviderID *string          `json:"provider_id,omitempty"`
	Reason     *string          `json:"reason,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// MessageLogFilter narrows windowed counts. Zero values mean no filter on
// that dimension. Counts only consider outgoing messages.
type MessageLogFilter struct {
	Phone    string
	TenantID string
	Outcome  MessageOutcome
}

// MessageLogRepository is the append-only message log plus the windowed
// count queries the rate limiters run on.
type MessageLogRepository interface {
	Append(ctx context.Context, entry *MessageLogEntry) error
	CountSince(ctx context.Context, since time.Time, filter MessageLogFilter) (int, error)
	// ListByEventID returns a page of log entries for one event, newest
	// first, along with the total count.
	ListByEventID(ctx context.Context, eventID string, limit, offset int) ([]*MessageLogEntry, int, error)
}
