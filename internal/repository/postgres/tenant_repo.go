package postgres

import (
	"context"
	"database/sql"
	"errors"

	"guestflow/internal/domain"
)

type tenantRepository struct {
	DB *sql.DB
}

func NewTenantRepository(db *sql.DB) domain.TenantRepository {
	return &tenantRepository{
		DB: db,
	}
}

func (r *tenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	query := `
		SELECT id, name, owner_id, sms_hourly_limit, sms_daily_limit, created_at
		FROM tenants
		WHERE id = $1
	`
	t := &domain.Tenant{}
	var hourlyNull, dailyNull sql.NullInt64
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.OwnerID, &hourlyNull, &dailyNull, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if hourlyNull.Valid {
		v := int(hourlyNull.Int64)
		t.SMSHourlyLimit = &v
	}
	if dailyNull.Valid {
		v := int(dailyNull.Int64)
		t.SMSDailyLimit = &v
	}
	return t, nil
}
