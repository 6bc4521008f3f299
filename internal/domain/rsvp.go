package domain

import "context"

// RSVPOutcome is the closed set of user-facing results for an RSVP
// submission.
type RSVPOutcome string

const (
	RSVPAccepted        RSVPOutcome = "accepted"
	RSVPAlreadyAnswered RSVPOutcome = "already_answered"
	RSVPEventFull       RSVPOutcome = "event_full"
	RSVPInvalidLink     RSVPOutcome = "invalid_link"
	RSVPInvalidResponse RSVPOutcome = "invalid_response"
)

// RSVPResult bundles the outcome with the resolved event and invitee when
// resolution succeeded.
type RSVPResult struct {
	Outcome RSVPOutcome
	Event   *Event
	Invitee *Invitee
}

// RSVPService resolves inbound responses to an event/invitee pair and
// commits the answer.
type RSVPService interface {
	// Resolve maps an RSVP token to its event and invitee.
	Resolve(ctx context.Context, token string) (*Event, *Invitee, error)
	// Submit records a yes/no response for the invitee behind the token.
	Submit(ctx context.Context, token, response string) (RSVPResult, error)
	// SubmitByPhone handles a messaging-provider webhook payload whose body
	// is "<eventCode> <YES|NO>".
	SubmitByPhone(ctx context.Context, fromPhone, body string) (RSVPResult, error)
	// Override forces an invitee to yes or no on behalf of the host,
	// bypassing the awaitable-status check but not the capacity check.
	Override(ctx context.Context, eventID, inviteeID, response string) (RSVPResult, error)
	// Retry re-sends the invitation for an errored invitee with a fresh
	// token.
	Retry(ctx context.Context, eventID, inviteeID string) (*Invitee, error)
}

// CapacityService promotes pending invitees into freed guest slots.
type CapacityService interface {
	Run(ctx context.Context) error
}

// ExpiryService sweeps stale invitations into expired.
type ExpiryService interface {
	Run(ctx context.Context) (int64, error)
}

// ReminderService nudges invited guests approaching their expiry window.
type ReminderService interface {
	Run(ctx context.Context) error
}
