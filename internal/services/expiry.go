package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"guestflow/internal/domain"
)

type expiryMonitor struct {
	invitees           domain.InviteeRepository
	defaultExpiryHours float64
	logger             *slog.Logger
	now                func() time.Time
}

// NewExpiryMonitor returns the sweep that bulk-transitions stale invited
// invitees to expired. Pure state mutation; it never sends messages.
func NewExpiryMonitor(invitees domain.InviteeRepository, defaultExpiryHours float64, logger *slog.Logger) domain.ExpiryService {
	return &expiryMonitor{
		invitees:           invitees,
		defaultExpiryHours: defaultExpiryHours,
		logger:             logger,
		now:                time.Now,
	}
}

func (m *expiryMonitor) Run(ctx context.Context) (int64, error) {
	expired, err := m.invitees.ExpireStale(ctx, m.now(), m.defaultExpiryHours)
	if err != nil {
		return 0, fmt.Errorf("expire stale invitations: %w", err)
	}
	if expired > 0 {
		m.logger.Info("expired stale invitations", "count", expired)
	}
	return expired, nil
}
