package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"guestflow/internal/domain"
)

const inviteeColumns = `id, event_id, contact_id, name, phone, status, priority, rsvp_token,
		error_message, added_at, invited_at, responded_at, expired_at, reminder_sent_at`

type inviteeRepository struct {
	DB *sql.DB
}

func NewInviteeRepository(db *sql.DB) domain.InviteeRepository {
	return &inviteeRepository{
		DB: db,
	}
}

func (r *inviteeRepository) GetByID(ctx context.Context, eventID, inviteeID string) (*domain.Invitee, error) {
	query := `
		SELECT ` + inviteeColumns + `
		FROM invitees
		WHERE event_id = $1 AND id = $2
	`
	return scanInvitee(r.DB.QueryRowContext(ctx, query, eventID, inviteeID))
}

func (r *inviteeRepository) GetByToken(ctx context.Context, token string) (*domain.Event, *domain.Invitee, error) {
	query := `
		SELECT e.id, e.tenant_id, e.name, e.event_code, e.date, e.location, e.details,
			e.capacity, e.invitation_expiry_hours, e.allow_rsvp_after_expiry,
			e.automation_status, e.organizer_is_attending, e.is_archived, e.created_at, e.updated_at,
			i.id, i.event_id, i.contact_id, i.name, i.phone, i.status, i.priority, i.rsvp_token,
			i.error_message, i.added_at, i.invited_at, i.responded_at, i.expired_at, i.reminder_sent_at
		FROM invitees i
		JOIN events e ON e.id = i.event_id
		WHERE i.rsvp_token = $1
	`
	row := r.DB.QueryRowContext(ctx, query, token)

	e := &domain.Event{}
	inv := &domain.Invitee{}
	var (
		dateNull               sql.NullTime
		locationNull, detNull  sql.NullString
		expiryNull             sql.NullFloat64
		tokenNull, errNull     sql.NullString
		invitedAt, respondedAt sql.NullTime
		expiredAt, remindedAt  sql.NullTime
	)
	err := row.Scan(
		&e.ID, &e.TenantID, &e.Name, &e.EventCode, &dateNull, &locationNull, &detNull,
		&e.Capacity, &expiryNull, &e.AllowRSVPAfterExpiry,
		&e.AutomationStatus, &e.OrganizerAttending, &e.IsArchived, &e.CreatedAt, &e.UpdatedAt,
		&inv.ID, &inv.EventID, &inv.ContactID, &inv.Name, &inv.Phone, &inv.Status, &inv.Priority, &tokenNull,
		&errNull, &inv.AddedAt, &invitedAt, &respondedAt, &expiredAt, &remindedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, err
	}
	if dateNull.Valid {
		e.Date = &dateNull.Time
	}
	if locationNull.Valid {
		e.Location = &locationNull.String
	}
	if detNull.Valid {
		e.Details = &detNull.String
	}
	if expiryNull.Valid {
		e.InvitationExpiryHours = &expiryNull.Float64
	}
	applyInviteeNulls(inv, tokenNull, errNull, invitedAt, respondedAt, expiredAt, remindedAt)
	return e, inv, nil
}

func (r *inviteeRepository) FindInvitedByPhone(ctx context.Context, eventID, phone string) (*domain.Invitee, error) {
	query := `
		SELECT ` + inviteeColumns + `
		FROM invitees
		WHERE event_id = $1 AND phone = $2 AND status = 'invited'
		ORDER BY invited_at DESC
		LIMIT 1
	`
	return scanInvitee(r.DB.QueryRowContext(ctx, query, eventID, phone))
}

func (r *inviteeRepository) ListPending(ctx context.Context, eventID string, limit int) ([]*domain.Invitee, error) {
	query := `
		SELECT ` + inviteeColumns + `
		FROM invitees
		WHERE event_id = $1 AND status = 'pending'
		ORDER BY priority ASC, added_at ASC, id ASC
		LIMIT $2
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitees []*domain.Invitee
	for rows.Next() {
		inv, err := scanInviteeRows(rows)
		if err != nil {
			return nil, err
		}
		invitees = append(invitees, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invitees, nil
}

func (r *inviteeRepository) CountByStatus(ctx context.Context, eventID string) (domain.InviteeCounts, error) {
	query := `
		SELECT status, count(*)
		FROM invitees
		WHERE event_id = $1
		GROUP BY status
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return domain.InviteeCounts{}, err
	}
	defer rows.Close()

	var counts domain.InviteeCounts
	for rows.Next() {
		var status domain.InviteeStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return domain.InviteeCounts{}, err
		}
		switch status {
		case domain.StatusPending:
			counts.Pending = n
		case domain.StatusInvited:
			counts.Invited = n
		case domain.StatusYes:
			counts.Yes = n
		case domain.StatusNo:
			counts.No = n
		case domain.StatusExpired:
			counts.Expired = n
		case domain.StatusError:
			counts.Error = n
		}
	}
	return counts, rows.Err()
}

// lockEvent takes the event row lock inside tx. Capacity-guarded commits
// for one event run one at a time behind this lock, so the capacity count
// in the following statement sees the previous winner's committed row.
func lockEvent(ctx context.Context, tx *sql.Tx, eventID string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// MarkInvited commits from -> invited with the fresh token. The capacity
// predicate keeps yes+invited+organizer within capacity at the moment of
// commit; a zero row count is disambiguated against the current row.
func (r *inviteeRepository) MarkInvited(ctx context.Context, eventID, inviteeID string, from domain.InviteeStatus, token string, invitedAt time.Time) error {
	if !domain.CanTransition(from, domain.StatusInvited) {
		return domain.ErrIllegalTransition
	}
	query := `
		UPDATE invitees
		SET status = 'invited', rsvp_token = $4, invited_at = $5, error_message = NULL, reminder_sent_at = NULL
		WHERE event_id = $1 AND id = $2 AND status = $3
			AND (
				SELECT count(*) FROM invitees c
				WHERE c.event_id = $1 AND c.status IN ('yes', 'invited') AND c.id <> $2
			) < (
				SELECT capacity - CASE WHEN organizer_is_attending THEN 1 ELSE 0 END
				FROM events WHERE id = $1
			)
	`
	n, err := r.guardedExec(ctx, query, eventID, inviteeID, from, token, invitedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrDuplicateToken
		}
		return err
	}
	if n > 0 {
		return nil
	}
	return r.resolveConditionalMiss(ctx, eventID, inviteeID, from, true)
}

// guardedExec runs a capacity-guarded conditional update behind the event
// row lock. The update's count subquery runs as its own statement after
// the lock wait, so it reads a snapshot that includes any winner that
// committed while this transaction was blocked.
func (r *inviteeRepository) guardedExec(ctx context.Context, query string, eventID string, args ...any) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := lockEvent(ctx, tx, eventID); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, query, append([]any{eventID}, args...)...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *inviteeRepository) MarkSendFailed(ctx context.Context, eventID, inviteeID, reason string) error {
	query := `
		UPDATE invitees
		SET status = 'error', error_message = $3
		WHERE event_id = $1 AND id = $2 AND status = 'invited'
	`
	res, err := r.DB.ExecContext(ctx, query, eventID, inviteeID, reason)
	if err != nil {
		return err
	}
	return r.checkConditionalResult(ctx, res, eventID, inviteeID, domain.StatusInvited, false)
}

// CommitYes only counts confirmed guests in its capacity predicate: an
// invited invitee answering yes frees its own invited slot in the same
// commit.
func (r *inviteeRepository) CommitYes(ctx context.Context, eventID, inviteeID string, from domain.InviteeStatus, respondedAt time.Time) error {
	query := `
		UPDATE invitees
		SET status = 'yes', responded_at = $4, error_message = NULL
		WHERE event_id = $1 AND id = $2 AND status = $3
			AND (
				SELECT count(*) FROM invitees c
				WHERE c.event_id = $1 AND c.status = 'yes' AND c.id <> $2
			) < (
				SELECT capacity - CASE WHEN organizer_is_attending THEN 1 ELSE 0 END
				FROM events WHERE id = $1
			)
	`
	n, err := r.guardedExec(ctx, query, eventID, inviteeID, from, respondedAt)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return r.resolveConditionalMiss(ctx, eventID, inviteeID, from, true)
}

func (r *inviteeRepository) CommitNo(ctx context.Context, eventID, inviteeID string, from domain.InviteeStatus, respondedAt time.Time) error {
	query := `
		UPDATE invitees
		SET status = 'no', responded_at = $4, error_message = NULL
		WHERE event_id = $1 AND id = $2 AND status = $3
	`
	res, err := r.DB.ExecContext(ctx, query, eventID, inviteeID, from, respondedAt)
	if err != nil {
		return err
	}
	return r.checkConditionalResult(ctx, res, eventID, inviteeID, from, false)
}

func (r *inviteeRepository) ExpireStale(ctx context.Context, now time.Time, defaultExpiryHours float64) (int64, error) {
	query := `
		UPDATE invitees i
		SET status = 'expired', expired_at = $1
		FROM events e
		WHERE e.id = i.event_id
			AND i.status = 'invited'
			AND e.automation_status = 'active'
			AND NOT e.is_archived
			AND i.invited_at + (COALESCE(e.invitation_expiry_hours, $2) * interval '1 hour') < $1
	`
	res, err := r.DB.ExecContext(ctx, query, now, defaultExpiryHours)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *inviteeRepository) ListDueReminders(ctx context.Context, now time.Time, defaultExpiryHours float64) ([]*domain.ReminderCandidate, error) {
	query := `
		SELECT i.event_id, i.id, e.tenant_id, i.contact_id, i.phone, e.name,
			COALESCE(e.invitation_expiry_hours, $2) - EXTRACT(EPOCH FROM ($1 - i.invited_at)) / 3600 AS remaining_hours
		FROM invitees i
		JOIN events e ON e.id = i.event_id
		WHERE i.status = 'invited'
			AND i.reminder_sent_at IS NULL
			AND e.automation_status = 'active'
			AND NOT e.is_archived
			AND EXTRACT(EPOCH FROM ($1 - i.invited_at)) / 3600 >= COALESCE(e.invitation_expiry_hours, $2) / 2
			AND COALESCE(e.invitation_expiry_hours, $2) - EXTRACT(EPOCH FROM ($1 - i.invited_at)) / 3600 > 0
		ORDER BY i.invited_at ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, now, defaultExpiryHours)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []*domain.ReminderCandidate
	for rows.Next() {
		c := &domain.ReminderCandidate{}
		if err := rows.Scan(&c.EventID, &c.InviteeID, &c.TenantID, &c.ContactID, &c.Phone, &c.EventName, &c.RemainingHours); err != nil {
			return nil, err
		}
		due = append(due, c)
	}
	return due, rows.Err()
}

func (r *inviteeRepository) MarkReminderSent(ctx context.Context, eventID, inviteeID string, at time.Time) error {
	query := `
		UPDATE invitees
		SET reminder_sent_at = $3
		WHERE event_id = $1 AND id = $2 AND status = 'invited' AND reminder_sent_at IS NULL
	`
	res, err := r.DB.ExecContext(ctx, query, eventID, inviteeID, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrConflict
	}
	return nil
}

// checkConditionalResult disambiguates a zero-row conditional update: the
// invitee may be gone, in a different status (lost race), or blocked by the
// capacity predicate.
func (r *inviteeRepository) checkConditionalResult(ctx context.Context, res sql.Result, eventID, inviteeID string, expected domain.InviteeStatus, capacityGuarded bool) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return r.resolveConditionalMiss(ctx, eventID, inviteeID, expected, capacityGuarded)
}

func (r *inviteeRepository) resolveConditionalMiss(ctx context.Context, eventID, inviteeID string, expected domain.InviteeStatus, capacityGuarded bool) error {
	current, err := r.GetByID(ctx, eventID, inviteeID)
	if err != nil {
		return err
	}
	if current.Status != expected {
		return domain.ErrConflict
	}
	if capacityGuarded {
		return domain.ErrCapacityExceeded
	}
	return domain.ErrConflict
}

func scanInvitee(row *sql.Row) (*domain.Invitee, error) {
	inv := &domain.Invitee{}
	var (
		tokenNull, errNull     sql.NullString
		invitedAt, respondedAt sql.NullTime
		expiredAt, remindedAt  sql.NullTime
	)
	err := row.Scan(
		&inv.ID, &inv.EventID, &inv.ContactID, &inv.Name, &inv.Phone, &inv.Status, &inv.Priority, &tokenNull,
		&errNull, &inv.AddedAt, &invitedAt, &respondedAt, &expiredAt, &remindedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	applyInviteeNulls(inv, tokenNull, errNull, invitedAt, respondedAt, expiredAt, remindedAt)
	return inv, nil
}

func scanInviteeRows(rows *sql.Rows) (*domain.Invitee, error) {
	inv := &domain.Invitee{}
	var (
		tokenNull, errNull     sql.NullString
		invitedAt, respondedAt sql.NullTime
		expiredAt, remindedAt  sql.NullTime
	)
	err := rows.Scan(
		&inv.ID, &inv.EventID, &inv.ContactID, &inv.Name, &inv.Phone, &inv.Status, &inv.Priority, &tokenNull,
		&errNull, &inv.AddedAt, &invitedAt, &respondedAt, &expiredAt, &remindedAt,
	)
	if err != nil {
		return nil, err
	}
	applyInviteeNulls(inv, tokenNull, errNull, invitedAt, respondedAt, expiredAt, remindedAt)
	return inv, nil
}

func applyInviteeNulls(inv *domain.Invitee, token, errMsg sql.NullString, invitedAt, respondedAt, expiredAt, remindedAt sql.NullTime) {
	if token.Valid {
		inv.RSVPToken = &token.String
	}
	if errMsg.Valid {
		inv.ErrorMessage = &errMsg.String
	}
	if invitedAt.Valid {
		inv.InvitedAt = &invitedAt.Time
	}
	if respondedAt.Valid {
		inv.RespondedAt = &respondedAt.Time
	}
	if expiredAt.Valid {
		inv.ExpiredAt = &expiredAt.Time
	}
	if remindedAt.Valid {
		inv.ReminderSentAt = &remindedAt.Time
	}
}
