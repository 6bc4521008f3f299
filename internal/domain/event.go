package domain

import (
	"context"
	"time"
)

// Automation states for an event. The capacity manager and expiry monitor
// only touch active, non-archived events.
const (
	AutomationActive = "active"
	AutomationPaused = "paused"
)

// Event represents a capacity-bounded event whose guest list is filled by
// the invitation automation.
// swagger:model Event
type Event struct {
	ID                    string     `json:"id"`
	TenantID              string     `json:"tenant_id"`
	Name                  string     `json:"name"`
	EventCode             string     `json:"event_code"`
	Date                  *time.Time `json:"date,omitempty"`
	Location              *string    `json:"location,omitempty"`
	Details               *string    `json:"details,omitempty"`
	Capacity              int        `json:"capacity"`
	InvitationExpiryHours *float64   `json:"invitation_expiry_hours,omitempty"`
	AllowRSVPAfterExpiry  bool       `json:"allow_rsvp_after_expiry"`
	AutomationStatus      string     `json:"automation_status"`
	OrganizerAttending    bool       `json:"organizer_is_attending"`
	IsArchived            bool       `json:"is_archived"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// OrganizerSpot returns 1 when the organizer consumes a guest slot.
func (e *Event) OrganizerSpot() int {
	if e.OrganizerAttending {
		return 1
	}
	return 0
}

// EffectiveExpiryHours returns the event's expiry override, or the system
// default when unset.
func (e *Event) EffectiveExpiryHours(defaultHours float64) float64 {
	if e.InvitationExpiryHours != nil {
		return *e.InvitationExpiryHours
	}
	return defaultHours
}

// Automated reports whether the automation may touch this event.
func (e *Event) Automated() bool {
	return e.AutomationStatus == AutomationActive && !e.IsArchived
}

// EventRepository defines the interface for event storage
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*Event, error)
	GetByEventCode(ctx context.Context, eventCode string) (*Event, error)
	// ListAutomated returns every active, non-archived event.
	ListAutomated(ctx context.Context) ([]*Event, error)
	SetAutomationStatus(ctx context.Context, id, status string) error
}
