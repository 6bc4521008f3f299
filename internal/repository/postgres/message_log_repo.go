package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"guestflow/internal/domain"
)

type messageLogRepository struct {
	DB *sql.DB
}

func NewMessageLogRepository(db *sql.DB) domain.MessageLogRepository {
	return &messageLogRepository{
		DB: db,
	}
}

func (r *messageLogRepository) Append(ctx context.Context, entry *domain.MessageLogEntry) error {
	query := `
		INSERT INTO message_logs (tenant_id, event_id, contact_id, phone, body, kind, direction, outcome, provider_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		entry.TenantID, entry.EventID, entry.ContactID, entry.Phone, entry.Body,
		entry.Kind, entry.Direction, entry.Outcome, entry.ProviderID, entry.Reason, entry.CreatedAt,
	).Scan(&entry.ID)
}

func (r *messageLogRepository) CountSince(ctx context.Context, since time.Time, filter domain.MessageLogFilter) (int, error) {
	query := `SELECT count(*) FROM message_logs WHERE created_at >= $1 AND direction = 'outgoing'`
	args := []any{since}
	if filter.Phone != "" {
		args = append(args, filter.Phone)
		query += fmt.Sprintf(" AND phone = $%d", len(args))
	}
	if filter.TenantID != "" {
		args = append(args, filter.TenantID)
		query += fmt.Sprintf(" AND tenant_id = $%d", len(args))
	}
	if filter.Outcome != "" {
		args = append(args, filter.Outcome)
		query += fmt.Sprintf(" AND outcome = $%d", len(args))
	}

	var n int
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *messageLogRepository) ListByEventID(ctx context.Context, eventID string, limit, offset int) ([]*domain.MessageLogEntry, int, error) {
	var total int
	countQuery := `SELECT count(*) FROM message_logs WHERE event_id = $1`
	if err := r.DB.QueryRowContext(ctx, countQuery, eventID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, tenant_id, event_id, contact_id, phone, body, kind, direction, outcome, provider_id, reason, created_at
		FROM message_logs
		WHERE event_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*domain.MessageLogEntry
	for rows.Next() {
		e := &domain.MessageLogEntry{}
		var eventIDNull, contactNull, providerNull, reasonNull sql.NullString
		if err := rows.Scan(&e.ID, &e.TenantID, &eventIDNull, &contactNull, &e.Phone, &e.Body,
			&e.Kind, &e.Direction, &e.Outcome, &providerNull, &reasonNull, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		if eventIDNull.Valid {
			e.EventID = &eventIDNull.String
		}
		if contactNull.Valid {
			e.ContactID = &contactNull.String
		}
		if providerNull.Valid {
			e.ProviderID = &providerNull.String
		}
		if reasonNull.Valid {
			e.Reason = &reasonNull.String
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if entries == nil {
		entries = []*domain.MessageLogEntry{}
	}
	return entries, total, nil
}
