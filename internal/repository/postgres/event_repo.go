package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"guestflow/internal/domain"
)

const eventColumns = `id, tenant_id, name, event_code, date, location, details, capacity,
		invitation_expiry_hours, allow_rsvp_after_expiry, automation_status,
		organizer_is_attending, is_archived, created_at, updated_at`

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1
	`
	return scanEvent(r.DB.QueryRowContext(ctx, query, id))
}

func (r *eventRepository) GetByEventCode(ctx context.Context, eventCode string) (*domain.Event, error) {
	code := strings.ToLower(strings.TrimSpace(eventCode))
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE lower(event_code) = $1
	`
	return scanEvent(r.DB.QueryRowContext(ctx, query, code))
}

func (r *eventRepository) ListAutomated(ctx context.Context) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE automation_status = 'active' AND NOT is_archived
		ORDER BY created_at ASC
	`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		e, err := scanEventRows(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *eventRepository) SetAutomationStatus(ctx context.Context, id, status string) error {
	if status != domain.AutomationActive && status != domain.AutomationPaused {
		return domain.ErrInvalidResponse
	}
	query := `
		UPDATE events
		SET automation_status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := r.DB.ExecContext(ctx, query, id, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanEvent(row *sql.Row) (*domain.Event, error) {
	e := &domain.Event{}
	var (
		dateNull              sql.NullTime
		locationNull, detNull sql.NullString
		expiryNull            sql.NullFloat64
	)
	err := row.Scan(
		&e.ID, &e.TenantID, &e.Name, &e.EventCode, &dateNull, &locationNull, &detNull, &e.Capacity,
		&expiryNull, &e.AllowRSVPAfterExpiry, &e.AutomationStatus,
		&e.OrganizerAttending, &e.IsArchived, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	applyEventNulls(e, dateNull, locationNull, detNull, expiryNull)
	return e, nil
}

func scanEventRows(rows *sql.Rows) (*domain.Event, error) {
	e := &domain.Event{}
	var (
		dateNull              sql.NullTime
		locationNull, detNull sql.NullString
		expiryNull            sql.NullFloat64
	)
	err := rows.Scan(
		&e.ID, &e.TenantID, &e.Name, &e.EventCode, &dateNull, &locationNull, &detNull, &e.Capacity,
		&expiryNull, &e.AllowRSVPAfterExpiry, &e.AutomationStatus,
		&e.OrganizerAttending, &e.IsArchived, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	applyEventNulls(e, dateNull, locationNull, detNull, expiryNull)
	return e, nil
}

func applyEventNulls(e *domain.Event, date sql.NullTime, location, details sql.NullString, expiry sql.NullFloat64) {
	if date.Valid {
		e.Date = &date.Time
	}
	if location.Valid {
		e.Location = &location.String
	}
	if details.Valid {
		e.Details = &details.String
	}
	if expiry.Valid {
		e.InvitationExpiryHours = &expiry.Float64
	}
}
