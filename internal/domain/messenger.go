package domain

import "context"

// Messenger is the transport client (infrastructure port). Once a send is
// dispatched it cannot be aborted; only the outcome is recorded.
type Messenger interface {
	// Send delivers body to the phone number and returns the provider's
	// message id on success.
	Send(ctx context.Context, to, body string) (providerID string, err error)
}

// SendOutcome is the result of one gateway send attempt.
type SendOutcome string

const (
	// SendOutcomeSent means the transport accepted the message.
	SendOutcomeSent SendOutcome = "sent"
	// SendOutcomeSkipped means the kill switch is on; nothing was dispatched.
	// Distinct from sent so callers never mistake a disabled platform for a
	// delivery.
	SendOutcomeSkipped SendOutcome = "skipped"
	// SendOutcomeBlocked means a guardrail rejected the send.
	SendOutcomeBlocked SendOutcome = "blocked"
	// SendOutcomeFailed means the transport returned an error.
	SendOutcomeFailed SendOutcome = "failed"
)

// Delivered reports whether the transport accepted the message.
func (o SendOutcome) Delivered() bool { return o == SendOutcomeSent }

// SendResult is what the gateway reports for every attempt. Guardrail blocks
// and transport failures are values here, never errors.
type SendResult struct {
	Outcome    SendOutcome
	ProviderID string
	Reason     string
}

// SendContext carries the ownership references logged with each attempt.
type SendContext struct {
	TenantID  string
	EventID   *string
	ContactID *string
}

// MessageGateway applies the messaging guardrails, delegates to the
// transport, and logs every outcome. The returned error is reserved for
// storage faults; everything expected is in the SendResult.
type MessageGateway interface {
	Send(ctx context.Context, kind MessageKind, recipient, body string, meta SendContext) (SendResult, error)
}
