package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"guestflow/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memEventRepo is an in-memory domain.EventRepository.
type memEventRepo struct {
	mu     sync.Mutex
	events map[string]*domain.Event
}

func newMemEventRepo(events ...*domain.Event) *memEventRepo {
	r := &memEventRepo{events: make(map[string]*domain.Event)}
	for _, e := range events {
		r.events[e.ID] = e
	}
	return r
}

func (r *memEventRepo) GetByID(_ context.Context, id string) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memEventRepo) GetByEventCode(_ context.Context, code string) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if strings.EqualFold(e.EventCode, code) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memEventRepo) ListAutomated(_ context.Context) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Event
	for _, e := range r.events {
		if e.Automated() {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memEventRepo) SetAutomationStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.AutomationStatus = status
	return nil
}

// memInviteeRepo is an in-memory domain.InviteeRepository. Its conditional
// updates enforce the same status and capacity predicates as the SQL ones.
type memInviteeRepo struct {
	mu       sync.Mutex
	events   *memEventRepo
	invitees map[string]*domain.Invitee // keyed by invitee ID
	order    []string                   // insertion order, for priority ties
}

func newMemInviteeRepo(events *memEventRepo, invitees ...*domain.Invitee) *memInviteeRepo {
	r := &memInviteeRepo{events: events, invitees: make(map[string]*domain.Invitee)}
	for _, inv := range invitees {
		r.invitees[inv.ID] = inv
		r.order = append(r.order, inv.ID)
	}
	return r
}

func (r *memInviteeRepo) get(eventID, inviteeID string) (*domain.Invitee, error) {
	inv, ok := r.invitees[inviteeID]
	if !ok || inv.EventID != eventID {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

func (r *memInviteeRepo) GetByID(_ context.Context, eventID, inviteeID string) (*domain.Invitee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, err := r.get(eventID, inviteeID)
	if err != nil {
		return nil, err
	}
	cp := *inv
	return &cp, nil
}

func (r *memInviteeRepo) GetByToken(_ context.Context, token string) (*domain.Event, *domain.Invitee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invitees {
		if inv.RSVPToken != nil && *inv.RSVPToken == token {
			event, ok := r.events.events[inv.EventID]
			if !ok {
				return nil, nil, domain.ErrNotFound
			}
			ecp, icp := *event, *inv
			return &ecp, &icp, nil
		}
	}
	return nil, nil, domain.ErrNotFound
}

func (r *memInviteeRepo) FindInvitedByPhone(_ context.Context, eventID, phone string) (*domain.Invitee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invitees {
		if inv.EventID == eventID && inv.Phone == phone && inv.Status == domain.StatusInvited {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memInviteeRepo) ListPending(_ context.Context, eventID string, limit int) ([]*domain.Invitee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Invitee
	for _, id := range r.order {
		inv := r.invitees[id]
		if inv.EventID == eventID && inv.Status == domain.StatusPending {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memInviteeRepo) CountByStatus(_ context.Context, eventID string) (domain.InviteeCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countLocked(eventID), nil
}

func (r *memInviteeRepo) countLocked(eventID string) domain.InviteeCounts {
	var c domain.InviteeCounts
	for _, inv := range r.invitees {
		if inv.EventID != eventID {
			continue
		}
		switch inv.Status {
		case domain.StatusPending:
			c.Pending++
		case domain.StatusInvited:
			c.Invited++
		case domain.StatusYes:
			c.Yes++
		case domain.StatusNo:
			c.No++
		case domain.StatusExpired:
			c.Expired++
		case domain.StatusError:
			c.Error++
		}
	}
	return c
}

// guestSlots returns the capacity left for guests after the organizer spot.
func (r *memInviteeRepo) guestSlots(eventID string) int {
	event := r.events.events[eventID]
	return event.Capacity - event.OrganizerSpot()
}

func (r *memInviteeRepo) MarkInvited(_ context.Context, eventID, inviteeID string, from domain.InviteeStatus, token string, invitedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.invitees {
		if other.ID != inviteeID && other.RSVPToken != nil && *other.RSVPToken == token {
			return domain.ErrDuplicateToken
		}
	}
	inv, err := r.get(eventID, inviteeID)
	if err != nil {
		return err
	}
	if inv.Status != from {
		return domain.ErrConflict
	}
	occupied := 0
	for _, other := range r.invitees {
		if other.EventID == eventID && other.ID != inviteeID &&
			(other.Status == domain.StatusYes || other.Status == domain.StatusInvited) {
			occupied++
		}
	}
	if occupied >= r.guestSlots(eventID) {
		return domain.ErrCapacityExceeded
	}
	inv.Status = domain.StatusInvited
	inv.RSVPToken = &token
	inv.InvitedAt = &invitedAt
	inv.ErrorMessage = nil
	inv.ReminderSentAt = nil
	return nil
}

func (r *memInviteeRepo) MarkSendFailed(_ context.Context, eventID, inviteeID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, err := r.get(eventID, inviteeID)
	if err != nil {
		return err
	}
	if inv.Status != domain.StatusInvited {
		return domain.ErrConflict
	}
	inv.Status = domain.StatusError
	inv.ErrorMessage = &reason
	return nil
}

func (r *memInviteeRepo) CommitYes(_ context.Context, eventID, inviteeID string, from domain.InviteeStatus, respondedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, err := r.get(eventID, inviteeID)
	if err != nil {
		return err
	}
	if inv.Status != from {
		return domain.ErrConflict
	}
	confirmed := 0
	for _, other := range r.invitees {
		if other.EventID == eventID && other.ID != inviteeID && other.Status == domain.StatusYes {
			confirmed++
		}
	}
	if confirmed >= r.guestSlots(eventID) {
		return domain.ErrCapacityExceeded
	}
	inv.Status = domain.StatusYes
	inv.RespondedAt = &respondedAt
	return nil
}

func (r *memInviteeRepo) CommitNo(_ context.Context, eventID, inviteeID string, from domain.InviteeStatus, respondedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, err := r.get(eventID, inviteeID)
	if err != nil {
		return err
	}
	if inv.Status != from {
		return domain.ErrConflict
	}
	inv.Status = domain.StatusNo
	inv.RespondedAt = &respondedAt
	return nil
}

func (r *memInviteeRepo) ExpireStale(_ context.Context, now time.Time, defaultExpiryHours float64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired int64
	for _, inv := range r.invitees {
		if inv.Status != domain.StatusInvited || inv.InvitedAt == nil {
			continue
		}
		event, ok := r.events.events[inv.EventID]
		if !ok || !event.Automated() {
			continue
		}
		window := time.Duration(event.EffectiveExpiryHours(defaultExpiryHours) * float64(time.Hour))
		if inv.InvitedAt.Add(window).Before(now) {
			inv.Status = domain.StatusExpired
			at := now
			inv.ExpiredAt = &at
			expired++
		}
	}
	return expired, nil
}

func (r *memInviteeRepo) ListDueReminders(_ context.Context, now time.Time, defaultExpiryHours float64) ([]*domain.ReminderCandidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ReminderCandidate
	for _, id := range r.order {
		inv := r.invitees[id]
		if inv.Status != domain.StatusInvited || inv.InvitedAt == nil || inv.ReminderSentAt != nil {
			continue
		}
		event, ok := r.events.events[inv.EventID]
		if !ok || !event.Automated() {
			continue
		}
		window := event.EffectiveExpiryHours(defaultExpiryHours)
		elapsed := now.Sub(*inv.InvitedAt).Hours()
		remaining := window - elapsed
		if elapsed > window/2 && remaining > 0 {
			out = append(out, &domain.ReminderCandidate{
				EventID:        event.ID,
				InviteeID:      inv.ID,
				TenantID:       event.TenantID,
				ContactID:      inv.ContactID,
				Phone:          inv.Phone,
				EventName:      event.Name,
				RemainingHours: remaining,
			})
		}
	}
	return out, nil
}

func (r *memInviteeRepo) MarkReminderSent(_ context.Context, eventID, inviteeID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, err := r.get(eventID, inviteeID)
	if err != nil {
		return err
	}
	if inv.Status != domain.StatusInvited || inv.ReminderSentAt != nil {
		return domain.ErrConflict
	}
	inv.ReminderSentAt = &at
	return nil
}

// memMessageLog is an in-memory domain.MessageLogRepository.
type memMessageLog struct {
	mu      sync.Mutex
	entries []*domain.MessageLogEntry
}

func (r *memMessageLog) Append(_ context.Context, entry *domain.MessageLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	cp.ID = fmt.Sprintf("log-%d", len(r.entries)+1)
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *memMessageLog) CountSince(_ context.Context, since time.Time, filter domain.MessageLogFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Direction != domain.DirectionOutgoing || e.CreatedAt.Before(since) {
			continue
		}
		if filter.Phone != "" && e.Phone != filter.Phone {
			continue
		}
		if filter.TenantID != "" && e.TenantID != filter.TenantID {
			continue
		}
		if filter.Outcome != "" && e.Outcome != filter.Outcome {
			continue
		}
		n++
	}
	return n, nil
}

func (r *memMessageLog) ListByEventID(_ context.Context, eventID string, limit, offset int) ([]*domain.MessageLogEntry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.MessageLogEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.EventID != nil && *e.EventID == eventID {
			cp := *e
			matched = append(matched, &cp)
		}
	}
	total := len(matched)
	if offset >= total {
		return []*domain.MessageLogEntry{}, total, nil
	}
	matched = matched[offset:]
	if limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// byKind filters logged entries for assertions.
func (r *memMessageLog) byKind(kind domain.MessageKind) []*domain.MessageLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.MessageLogEntry
	for _, e := range r.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// memTenantRepo is an in-memory domain.TenantRepository.
type memTenantRepo struct {
	tenants map[string]*domain.Tenant
}

func newMemTenantRepo(tenants ...*domain.Tenant) *memTenantRepo {
	r := &memTenantRepo{tenants: make(map[string]*domain.Tenant)}
	for _, t := range tenants {
		r.tenants[t.ID] = t
	}
	return r
}

func (r *memTenantRepo) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	t, ok := r.tenants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// sentMessage records one transport dispatch.
type sentMessage struct {
	To   string
	Body string
}

// fakeMessenger records dispatches and can be scripted to fail per phone.
type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]string // phone -> error message
}

func (m *fakeMessenger) Send(_ context.Context, to, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reason, ok := m.failFor[to]; ok {
		return "", fmt.Errorf("%s", reason)
	}
	m.sent = append(m.sent, sentMessage{To: to, Body: body})
	return fmt.Sprintf("SM%04d", len(m.sent)), nil
}

func (m *fakeMessenger) sentTo(phone string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.To == phone {
			n++
		}
	}
	return n
}

// openGateway returns a gateway with generous limits so guardrails never
// interfere with the test at hand.
func openGateway(messenger domain.Messenger, log domain.MessageLogRepository) domain.MessageGateway {
	return NewMessageGateway(GatewayConfig{
		Enabled:           true,
		GlobalHourlyLimit: 1000,
		GlobalDailyLimit:  1000,
		SpamWindow:        time.Minute,
		SpamWindowLimit:   1000,
	}, messenger, log, newMemTenantRepo(), testLogger())
}
