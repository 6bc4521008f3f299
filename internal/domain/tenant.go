package domain

import (
	"context"
	"time"
)

// Tenant is the isolation boundary owning events, invitees, and messaging
// quotas.
// swagger:model Tenant
type Tenant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
	// Per-tenant SMS caps. Nil falls back to the platform-wide values.
	SMSHourlyLimit *int      `json:"sms_hourly_limit,omitempty"`
	SMSDailyLimit  *int      `json:"sms_daily_limit,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TenantRepository defines storage operations for tenants.
type TenantRepository interface {
	GetByID(ctx context.Context, id string) (*Tenant, error)
}
