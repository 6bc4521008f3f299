package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"guestflow/internal/domain"
)

// GatewayConfig holds the guardrail settings for outbound messaging.
type GatewayConfig struct {
	// Enabled is the kill switch. When false nothing reaches the transport.
	Enabled bool
	// Platform-wide caps on sent messages.
	GlobalHourlyLimit int
	GlobalDailyLimit  int
	// Recipient spam guard: at most SpamWindowLimit messages to one phone
	// within SpamWindow, counted platform-wide across all outcomes.
	SpamWindow      time.Duration
	SpamWindowLimit int
}

type messageGateway struct {
	cfg       GatewayConfig
	messenger domain.Messenger
	log       domain.MessageLogRepository
	tenants   domain.TenantRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewMessageGateway returns the outbound gateway that evaluates guardrails in
// fixed order, short-circuits on the first violation, and logs every attempt
// whatever the outcome.
func NewMessageGateway(
	cfg GatewayConfig,
	messenger domain.Messenger,
	log domain.MessageLogRepository,
	tenants domain.TenantRepository,
	logger *slog.Logger,
) domain.MessageGateway {
	return &messageGateway{
		cfg:       cfg,
		messenger: messenger,
		log:       log,
		tenants:   tenants,
		logger:    logger,
		now:       time.Now,
	}
}

func (g *messageGateway) Send(ctx context.Context, kind domain.MessageKind, recipient, body string, meta domain.SendContext) (domain.SendResult, error) {
	now := g.now()

	// 1. Kill switch. Logged as blocked but reported as skipped so callers
	// never mistake a disabled platform for a delivery.
	if !g.cfg.Enabled {
		res := domain.SendResult{Outcome: domain.SendOutcomeSkipped, Reason: "messaging disabled"}
		return g.finish(ctx, kind, recipient, body, meta, res, now)
	}

	// 2. Recipient spam guard. Blocked attempts count toward the window too,
	// so no outcome filter here.
	n, err := g.log.CountSince(ctx, now.Add(-g.cfg.SpamWindow), domain.MessageLogFilter{Phone: recipient})
	if err != nil {
		return domain.SendResult{}, fmt.Errorf("count recipient window: %w", err)
	}
	if n >= g.cfg.SpamWindowLimit {
		res := domain.SendResult{Outcome: domain.SendOutcomeBlocked, Reason: "recipient message limit reached"}
		return g.finish(ctx, kind, recipient, body, meta, res, now)
	}

	// 3. Global rate limit on sent messages.
	if res, blocked, err := g.checkSentCaps(ctx, now, "", g.cfg.GlobalHourlyLimit, g.cfg.GlobalDailyLimit, "platform"); err != nil {
		return domain.SendResult{}, err
	} else if blocked {
		return g.finish(ctx, kind, recipient, body, meta, res, now)
	}

	// 4. Tenant rate limit, defaulting to the platform caps.
	hourly, daily := g.cfg.GlobalHourlyLimit, g.cfg.GlobalDailyLimit
	if tenant, err := g.tenants.GetByID(ctx, meta.TenantID); err == nil {
		if tenant.SMSHourlyLimit != nil {
			hourly = *tenant.SMSHourlyLimit
		}
		if tenant.SMSDailyLimit != nil {
			daily = *tenant.SMSDailyLimit
		}
	} else if err != domain.ErrNotFound {
		return domain.SendResult{}, fmt.Errorf("get tenant: %w", err)
	}
	if res, blocked, err := g.checkSentCaps(ctx, now, meta.TenantID, hourly, daily, "tenant"); err != nil {
		return domain.SendResult{}, err
	} else if blocked {
		return g.finish(ctx, kind, recipient, body, meta, res, now)
	}

	// All guards passed; dispatch.
	providerID, sendErr := g.messenger.Send(ctx, recipient, body)
	res := domain.SendResult{Outcome: domain.SendOutcomeSent, ProviderID: providerID}
	if sendErr != nil {
		res = domain.SendResult{Outcome: domain.SendOutcomeFailed, Reason: sendErr.Error()}
	}
	return g.finish(ctx, kind, recipient, body, meta, res, now)
}

func (g *messageGateway) checkSentCaps(ctx context.Context, now time.Time, tenantID string, hourly, daily int, scope string) (domain.SendResult, bool, error) {
	filter := domain.MessageLogFilter{TenantID: tenantID, Outcome: domain.OutcomeSent}

	sentHour, err := g.log.CountSince(ctx, now.Add(-time.Hour), filter)
	if err != nil {
		return domain.SendResult{}, false, fmt.Errorf("count %s hourly window: %w", scope, err)
	}
	if sentHour >= hourly {
		return domain.SendResult{Outcome: domain.SendOutcomeBlocked, Reason: scope + " hourly limit reached"}, true, nil
	}

	sentDay, err := g.log.CountSince(ctx, now.Add(-24*time.Hour), filter)
	if err != nil {
		return domain.SendResult{}, false, fmt.Errorf("count %s daily window: %w", scope, err)
	}
	if sentDay >= daily {
		return domain.SendResult{Outcome: domain.SendOutcomeBlocked, Reason: scope + " daily limit reached"}, true, nil
	}
	return domain.SendResult{}, false, nil
}

// finish writes the log entry for the attempt and returns the result. The
// skipped outcome is recorded as blocked in the log so it still counts toward
// rate-limit windows.
func (g *messageGateway) finish(ctx context.Context, kind domain.MessageKind, recipient, body string, meta domain.SendContext, res domain.SendResult, now time.Time) (domain.SendResult, error) {
	logOutcome := domain.MessageOutcome(res.Outcome)
	if res.Outcome == domain.SendOutcomeSkipped {
		logOutcome = domain.OutcomeBlocked
	}
	entry := &domain.MessageLogEntry{
		TenantID:  meta.TenantID,
		EventID:   meta.EventID,
		ContactID: meta.ContactID,
		Phone:     recipient,
		Body:      body,
		Kind:      kind,
		Direction: domain.DirectionOutgoing,
		Outcome:   logOutcome,
		CreatedAt: now,
	}
	if res.ProviderID != "" {
		entry.ProviderID = &res.ProviderID
	}
	if res.Reason != "" {
		entry.Reason = &res.Reason
	}
	if err := g.log.Append(ctx, entry); err != nil {
		return res, fmt.Errorf("append message log: %w", err)
	}

	switch res.Outcome {
	case domain.SendOutcomeSent:
		g.logger.Info("message sent", "kind", kind, "to", recipient, "provider_id", res.ProviderID)
	case domain.SendOutcomeFailed:
		g.logger.Error("message send failed", "kind", kind, "to", recipient, "reason", res.Reason)
	default:
		g.logger.Warn("message not dispatched", "kind", kind, "to", recipient, "outcome", res.Outcome, "reason", res.Reason)
	}
	return res, nil
}
