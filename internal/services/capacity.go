package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"guestflow/internal/domain"
)

// tokenAttempts bounds regeneration when a fresh RSVP token collides with an
// existing one.
const tokenAttempts = 3

type capacityManager struct {
	events   domain.EventRepository
	invitees domain.InviteeRepository
	gateway  domain.MessageGateway
	baseURL  string
	logger   *slog.Logger
	now      func() time.Time
}

// NewCapacityManager returns the service that promotes pending invitees into
// freed guest slots and dispatches their invitations.
func NewCapacityManager(
	events domain.EventRepository,
	invitees domain.InviteeRepository,
	gateway domain.MessageGateway,
	baseURL string,
	logger *slog.Logger,
) domain.CapacityService {
	return &capacityManager{
		events:   events,
		invitees: invitees,
		gateway:  gateway,
		baseURL:  baseURL,
		logger:   logger,
		now:      time.Now,
	}
}

// Run promotes invitees for every active, non-archived event. A failure on
// one event never blocks the others.
func (m *capacityManager) Run(ctx context.Context) error {
	events, err := m.events.ListAutomated(ctx)
	if err != nil {
		return fmt.Errorf("list automated events: %w", err)
	}
	for _, event := range events {
		if err := m.runEvent(ctx, event); err != nil {
			m.logger.Error("capacity pass failed for event", "event_id", event.ID, "error", err)
		}
	}
	return nil
}

func (m *capacityManager) runEvent(ctx context.Context, event *domain.Event) error {
	counts, err := m.invitees.CountByStatus(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("count invitees: %w", err)
	}
	available := event.Capacity - (counts.Yes + counts.Invited + event.OrganizerSpot())
	if available <= 0 {
		return nil
	}

	pending, err := m.invitees.ListPending(ctx, event.ID, available)
	if err != nil {
		return fmt.Errorf("list pending invitees: %w", err)
	}
	for _, invitee := range pending {
		if err := m.promote(ctx, event, invitee); err != nil {
			m.logger.Error("promotion failed", "event_id", event.ID, "invitee_id", invitee.ID, "error", err)
		}
	}
	return nil
}

// assignInvited commits from -> invited with a freshly generated token,
// regenerating on the unlikely token collision.
func assignInvited(ctx context.Context, invitees domain.InviteeRepository, eventID, inviteeID string, from domain.InviteeStatus, at time.Time) (string, error) {
	var err error
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		token := uuid.NewString()
		err = invitees.MarkInvited(ctx, eventID, inviteeID, from, token, at)
		if errors.Is(err, domain.ErrDuplicateToken) {
			continue
		}
		if err != nil {
			return "", err
		}
		return token, nil
	}
	return "", err
}

// promote commits pending -> invited with a fresh token, then dispatches the
// invitation. A non-delivery moves the invitee to error with the reason; it
// never returns to pending.
func (m *capacityManager) promote(ctx context.Context, event *domain.Event, invitee *domain.Invitee) error {
	token, err := assignInvited(ctx, m.invitees, event.ID, invitee.ID, domain.StatusPending, m.now())
	if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrCapacityExceeded) {
		// Someone else claimed the invitee or the slot; nothing to do.
		m.logger.Debug("promotion skipped", "event_id", event.ID, "invitee_id", invitee.ID, "cause", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark invited: %w", err)
	}

	res, err := m.gateway.Send(ctx, domain.KindInvitation, invitee.Phone,
		invitationBody(event, m.baseURL, token),
		domain.SendContext{TenantID: event.TenantID, EventID: &event.ID, ContactID: &invitee.ContactID},
	)
	if err != nil {
		return fmt.Errorf("send invitation: %w", err)
	}
	if !res.Outcome.Delivered() {
		reason := res.Reason
		if reason == "" {
			reason = string(res.Outcome)
		}
		if err := m.invitees.MarkSendFailed(ctx, event.ID, invitee.ID, reason); err != nil && !errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("mark send failed: %w", err)
		}
		return nil
	}
	m.logger.Info("invitee promoted", "event_id", event.ID, "invitee_id", invitee.ID, "phone", invitee.Phone)
	return nil
}
