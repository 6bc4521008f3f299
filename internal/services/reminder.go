package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"guestflow/internal/domain"
)

type reminderService struct {
	invitees           domain.InviteeRepository
	gateway            domain.MessageGateway
	defaultExpiryHours float64
	logger             *slog.Logger
	now                func() time.Time
}

// NewReminderService returns the job that nudges invited guests once they
// pass half their expiry window without answering.
func NewReminderService(
	invitees domain.InviteeRepository,
	gateway domain.MessageGateway,
	defaultExpiryHours float64,
	logger *slog.Logger,
) domain.ReminderService {
	return &reminderService{
		invitees:           invitees,
		gateway:            gateway,
		defaultExpiryHours: defaultExpiryHours,
		logger:             logger,
		now:                time.Now,
	}
}

func (s *reminderService) Run(ctx context.Context) error {
	now := s.now()
	due, err := s.invitees.ListDueReminders(ctx, now, s.defaultExpiryHours)
	if err != nil {
		return fmt.Errorf("list due reminders: %w", err)
	}
	for _, candidate := range due {
		hoursRemaining := int(math.Round(candidate.RemainingHours))
		if hoursRemaining <= 0 {
			// Will expire before a rounded-hour reminder makes sense.
			continue
		}
		res, err := s.gateway.Send(ctx, domain.KindReminder, candidate.Phone,
			reminderBody(candidate.EventName, hoursRemaining),
			domain.SendContext{TenantID: candidate.TenantID, EventID: &candidate.EventID, ContactID: &candidate.ContactID},
		)
		if err != nil {
			return fmt.Errorf("send reminder: %w", err)
		}
		if !res.Outcome.Delivered() {
			s.logger.Warn("reminder not delivered", "event_id", candidate.EventID, "invitee_id", candidate.InviteeID, "outcome", res.Outcome, "reason", res.Reason)
			continue
		}
		// Recorded only on delivery so an undelivered reminder is retried on
		// the next tick.
		if err := s.invitees.MarkReminderSent(ctx, candidate.EventID, candidate.InviteeID, now); err != nil && err != domain.ErrConflict {
			return fmt.Errorf("mark reminder sent: %w", err)
		}
	}
	return nil
}
