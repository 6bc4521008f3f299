package domain

import (
	"context"
	"time"
)

// InviteeStatus is the lifecycle status of an invitee. The set is closed;
// persistence rejects anything outside it.
type InviteeStatus string

const (
	StatusPending InviteeStatus = "pending"
	StatusInvited InviteeStatus = "invited"
	StatusYes     InviteeStatus = "yes"
	StatusNo      InviteeStatus = "no"
	StatusExpired InviteeStatus = "expired"
	StatusError   InviteeStatus = "error"
)

// Valid reports whether s is one of the defined statuses.
func (s InviteeStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInvited, StatusYes, StatusNo, StatusExpired, StatusError:
		return true
	}
	return false
}

// transitions defines the edges of the invitee state machine. The host
// override path (any status to yes/no) deliberately bypasses this table but
// still goes through the capacity-checked commit primitives.
var transitions = map[InviteeStatus][]InviteeStatus{
	StatusPending: {StatusInvited},
	StatusInvited: {StatusYes, StatusNo, StatusExpired, StatusError},
	StatusError:   {StatusInvited, StatusYes, StatusNo},
	// expired -> yes/no is only reachable when the event allows late responses.
	StatusExpired: {StatusYes, StatusNo},
}

// CanTransition reports whether the state machine has an edge from one
// status to another.
func CanTransition(from, to InviteeStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Invitee is a candidate recipient of an event invitation, owned by exactly
// one event.
// swagger:model Invitee
type Invitee struct {
	ID             string        `json:"id"`
	EventID        string        `json:"event_id"`
	ContactID      string        `json:"contact_id"`
	Name           string        `json:"name"`
	Phone          string        `json:"phone"`
	Status         InviteeStatus `json:"status"`
	Priority       int           `json:"priority"`
	RSVPToken      *string       `json:"-"`
	ErrorMessage   *string       `json:"error_message,omitempty"`
	AddedAt        time.Time     `json:"added_at"`
	InvitedAt      *time.Time    `json:"invited_at,omitempty"`
	RespondedAt    *time.Time    `json:"responded_at,omitempty"`
	ExpiredAt      *time.Time    `json:"expired_at,omitempty"`
	ReminderSentAt *time.Time    `json:"reminder_sent_at,omitempty"`
}

// InviteeCounts holds per-status counts for one event.
type InviteeCounts struct {
	Pending int
	Invited int
	Yes     int
	No      int
	Expired int
	Error   int
}

// ReminderCandidate is an invited invitee due for a reminder, joined with the
// event fields the reminder needs.
type ReminderCandidate struct {
	EventID        string
	InviteeID      string
	TenantID       string
	ContactID      string
	Phone          string
	EventName      string
	RemainingHours float64
}

// InviteeRepository defines the atomic storage primitives for invitee state.
// Every state-changing method is a conditional update keyed by
// (event id, invitee id, expected current status); a predicate mismatch
// surfaces as ErrConflict or ErrCapacityExceeded, never a blind overwrite.
type InviteeRepository interface {
	GetByID(ctx context.Context, eventID, inviteeID string) (*Invitee, error)
	// GetByToken resolves an RSVP token to its event and invitee.
	GetByToken(ctx context.Context, token string) (*Event, *Invitee, error)
	// FindInvitedByPhone returns the invitee with an open invitation for the
	// given phone within one event.
	FindInvitedByPhone(ctx context.Context, eventID, phone string) (*Invitee, error)
	// ListPending returns up to limit pending invitees ordered by ascending
	// priority, insertion order breaking ties.
	ListPending(ctx context.Context, eventID string, limit int) ([]*Invitee, error)
	CountByStatus(ctx context.Context, eventID string) (InviteeCounts, error)

	// MarkInvited moves an invitee from the expected status into invited,
	// assigning the token and invited_at and clearing any error message. The
	// update only commits while yes+invited+organizer stays within capacity.
	MarkInvited(ctx context.Context, eventID, inviteeID string, from InviteeStatus, token string, invitedAt time.Time) error
	// MarkSendFailed moves an invited invitee into error with the reason.
	MarkSendFailed(ctx context.Context, eventID, inviteeID, reason string) error
	// CommitYes moves an invitee from the expected status into yes. The update
	// only commits while a confirmed guest slot remains.
	CommitYes(ctx context.Context, eventID, inviteeID string, from InviteeStatus, respondedAt time.Time) error
	// CommitNo moves an invitee from the expected status into no.
	CommitNo(ctx context.Context, eventID, inviteeID string, from InviteeStatus, respondedAt time.Time) error

	// ExpireStale transitions every invited invitee of an active, non-archived
	// event whose effective expiry window has elapsed into expired, as a single
	// set-based conditional update. Returns the number of invitees expired.
	ExpireStale(ctx context.Context, now time.Time, defaultExpiryHours float64) (int64, error)
	// ListDueReminders returns invited invitees of active events that are past
	// half their expiry window and have not been reminded yet.
	ListDueReminders(ctx context.Context, now time.Time, defaultExpiryHours float64) ([]*ReminderCandidate, error)
	// MarkReminderSent records the reminder timestamp while the invitee is
	// still invited and unreminded.
	MarkReminderSent(ctx context.Context, eventID, inviteeID string, at time.Time) error
}
