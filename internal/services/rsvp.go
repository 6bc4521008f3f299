package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"guestflow/internal/domain"
)

// commitAttempts bounds re-resolution when a conditional commit keeps losing
// races.
const commitAttempts = 3

type rsvpService struct {
	events   domain.EventRepository
	invitees domain.InviteeRepository
	gateway  domain.MessageGateway
	log      domain.MessageLogRepository
	baseURL  string
	logger   *slog.Logger
	now      func() time.Time
}

// NewRSVPService returns the resolver that maps inbound responses to an
// event/invitee pair and commits the answer.
func NewRSVPService(
	events domain.EventRepository,
	invitees domain.InviteeRepository,
	gateway domain.MessageGateway,
	log domain.MessageLogRepository,
	baseURL string,
	logger *slog.Logger,
) domain.RSVPService {
	return &rsvpService{
		events:   events,
		invitees: invitees,
		gateway:  gateway,
		log:      log,
		baseURL:  baseURL,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *rsvpService) Resolve(ctx context.Context, token string) (*domain.Event, *domain.Invitee, error) {
	if token == "" {
		return nil, nil, domain.ErrNotFound
	}
	return s.invitees.GetByToken(ctx, token)
}

func (s *rsvpService) Submit(ctx context.Context, token, response string) (domain.RSVPResult, error) {
	event, invitee, err := s.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.RSVPResult{Outcome: domain.RSVPInvalidLink}, nil
		}
		return domain.RSVPResult{}, fmt.Errorf("resolve token: %w", err)
	}
	if !awaitable(event, invitee.Status) {
		return domain.RSVPResult{Outcome: domain.RSVPAlreadyAnswered, Event: event, Invitee: invitee}, nil
	}
	answer, ok := parseResponse(response)
	if !ok {
		return domain.RSVPResult{Outcome: domain.RSVPInvalidResponse, Event: event, Invitee: invitee}, nil
	}
	return s.commit(ctx, event, invitee, answer, true)
}

func (s *rsvpService) SubmitByPhone(ctx context.Context, fromPhone, body string) (domain.RSVPResult, error) {
	result, event, invitee, err := s.resolveByPhone(ctx, fromPhone, body)
	if logErr := s.logInbound(ctx, fromPhone, body, event, invitee); logErr != nil {
		s.logger.Error("failed to log inbound message", "from", fromPhone, "error", logErr)
	}
	if err != nil {
		return domain.RSVPResult{}, err
	}
	return result, nil
}

func (s *rsvpService) resolveByPhone(ctx context.Context, fromPhone, body string) (domain.RSVPResult, *domain.Event, *domain.Invitee, error) {
	parts := strings.Fields(strings.ToUpper(strings.TrimSpace(body)))
	if len(parts) != 2 {
		return domain.RSVPResult{Outcome: domain.RSVPInvalidResponse}, nil, nil, nil
	}
	answer, ok := parseResponse(parts[1])
	if !ok {
		return domain.RSVPResult{Outcome: domain.RSVPInvalidResponse}, nil, nil, nil
	}

	event, err := s.events.GetByEventCode(ctx, parts[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.RSVPResult{Outcome: domain.RSVPInvalidLink}, nil, nil, nil
		}
		return domain.RSVPResult{}, nil, nil, fmt.Errorf("get event by code: %w", err)
	}

	invitee, err := s.invitees.FindInvitedByPhone(ctx, event.ID, fromPhone)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("no open invitation for phone", "event_code", parts[0], "from", fromPhone)
			return domain.RSVPResult{Outcome: domain.RSVPInvalidLink, Event: event}, event, nil, nil
		}
		return domain.RSVPResult{}, event, nil, fmt.Errorf("find invitee by phone: %w", err)
	}

	result, err := s.commit(ctx, event, invitee, answer, true)
	return result, event, invitee, err
}

// Override forces an invitee to yes or no on the host's behalf. The guest
// did not act, so no confirmation message is dispatched.
func (s *rsvpService) Override(ctx context.Context, eventID, inviteeID, response string) (domain.RSVPResult, error) {
	answer, ok := parseResponse(response)
	if !ok {
		return domain.RSVPResult{}, domain.ErrInvalidResponse
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return domain.RSVPResult{}, err
	}

	for attempt := 0; attempt < commitAttempts; attempt++ {
		invitee, err := s.invitees.GetByID(ctx, eventID, inviteeID)
		if err != nil {
			return domain.RSVPResult{}, err
		}
		if invitee.Status == answer {
			return domain.RSVPResult{Outcome: domain.RSVPAlreadyAnswered, Event: event, Invitee: invitee}, nil
		}
		// Host override skips the awaitable check; the capacity predicate
		// still applies on yes.
		if answer == domain.StatusYes {
			err = s.invitees.CommitYes(ctx, eventID, inviteeID, invitee.Status, s.now())
		} else {
			err = s.invitees.CommitNo(ctx, eventID, inviteeID, invitee.Status, s.now())
		}
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if errors.Is(err, domain.ErrCapacityExceeded) {
			return domain.RSVPResult{Outcome: domain.RSVPEventFull, Event: event, Invitee: invitee}, nil
		}
		if err != nil {
			return domain.RSVPResult{}, fmt.Errorf("override commit: %w", err)
		}
		updated, err := s.invitees.GetByID(ctx, eventID, inviteeID)
		if err != nil {
			return domain.RSVPResult{}, err
		}
		return domain.RSVPResult{Outcome: domain.RSVPAccepted, Event: event, Invitee: updated}, nil
	}
	return domain.RSVPResult{}, domain.ErrConflict
}

func (s *rsvpService) Retry(ctx context.Context, eventID, inviteeID string) (*domain.Invitee, error) {
	invitee, err := s.invitees.GetByID(ctx, eventID, inviteeID)
	if err != nil {
		return nil, err
	}
	if invitee.Status != domain.StatusError {
		return nil, domain.ErrIllegalTransition
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	token, err := assignInvited(ctx, s.invitees, eventID, inviteeID, domain.StatusError, s.now())
	if err != nil {
		return nil, err
	}

	res, err := s.gateway.Send(ctx, domain.KindInvitation, invitee.Phone,
		invitationBody(event, s.baseURL, token),
		domain.SendContext{TenantID: event.TenantID, EventID: &event.ID, ContactID: &invitee.ContactID},
	)
	if err != nil {
		return nil, fmt.Errorf("send invitation: %w", err)
	}
	if !res.Outcome.Delivered() {
		reason := res.Reason
		if reason == "" {
			reason = string(res.Outcome)
		}
		if err := s.invitees.MarkSendFailed(ctx, eventID, inviteeID, reason); err != nil && !errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("mark send failed: %w", err)
		}
	}
	return s.invitees.GetByID(ctx, eventID, inviteeID)
}

// commit applies the answer with the atomic conditional primitives, re-
// resolving on a lost race. sendConfirmation gates the gateway call so only
// a genuine transition into yes produces a confirmation message.
func (s *rsvpService) commit(ctx context.Context, event *domain.Event, invitee *domain.Invitee, answer domain.InviteeStatus, sendConfirmation bool) (domain.RSVPResult, error) {
	for attempt := 0; attempt < commitAttempts; attempt++ {
		if !awaitable(event, invitee.Status) {
			return domain.RSVPResult{Outcome: domain.RSVPAlreadyAnswered, Event: event, Invitee: invitee}, nil
		}
		var err error
		if answer == domain.StatusYes {
			err = s.invitees.CommitYes(ctx, event.ID, invitee.ID, invitee.Status, s.now())
		} else {
			err = s.invitees.CommitNo(ctx, event.ID, invitee.ID, invitee.Status, s.now())
		}
		if errors.Is(err, domain.ErrCapacityExceeded) {
			// Slot race lost; state unchanged.
			return domain.RSVPResult{Outcome: domain.RSVPEventFull, Event: event, Invitee: invitee}, nil
		}
		if errors.Is(err, domain.ErrConflict) {
			invitee, err = s.invitees.GetByID(ctx, event.ID, invitee.ID)
			if err != nil {
				return domain.RSVPResult{}, fmt.Errorf("re-resolve invitee: %w", err)
			}
			continue
		}
		if err != nil {
			return domain.RSVPResult{}, fmt.Errorf("commit response: %w", err)
		}

		updated, err := s.invitees.GetByID(ctx, event.ID, invitee.ID)
		if err != nil {
			return domain.RSVPResult{}, err
		}
		if answer == domain.StatusYes && sendConfirmation {
			if _, err := s.gateway.Send(ctx, domain.KindConfirmation, updated.Phone,
				confirmationBody(event.Name, domain.RSVPAccepted, domain.StatusYes),
				domain.SendContext{TenantID: event.TenantID, EventID: &event.ID, ContactID: &updated.ContactID},
			); err != nil {
				s.logger.Error("confirmation send failed", "event_id", event.ID, "invitee_id", updated.ID, "error", err)
			}
		}
		s.logger.Info("rsvp recorded", "event_id", event.ID, "invitee_id", updated.ID, "response", answer)
		return domain.RSVPResult{Outcome: domain.RSVPAccepted, Event: event, Invitee: updated}, nil
	}
	return domain.RSVPResult{}, domain.ErrConflict
}

func (s *rsvpService) logInbound(ctx context.Context, fromPhone, body string, event *domain.Event, invitee *domain.Invitee) error {
	entry := &domain.MessageLogEntry{
		Phone:     fromPhone,
		Body:      body,
		Kind:      domain.KindRSVPResponse,
		Direction: domain.DirectionIncoming,
		Outcome:   domain.OutcomeReceived,
		CreatedAt: s.now(),
	}
	if event != nil {
		entry.TenantID = event.TenantID
		entry.EventID = &event.ID
	}
	if invitee != nil {
		entry.ContactID = &invitee.ContactID
	}
	return s.log.Append(ctx, entry)
}

// awaitable reports whether the invitee may still answer: invited and error
// always, expired only when the event allows late responses.
func awaitable(event *domain.Event, status domain.InviteeStatus) bool {
	switch status {
	case domain.StatusInvited, domain.StatusError:
		return true
	case domain.StatusExpired:
		return event.AllowRSVPAfterExpiry
	}
	return false
}

func parseResponse(response string) (domain.InviteeStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "yes":
		return domain.StatusYes, true
	case "no":
		return domain.StatusNo, true
	}
	return "", false
}
