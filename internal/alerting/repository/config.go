package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/agrostock/agrostock-backend/internal/alerting/domain"
	"github.com/agrostock/agrostock-backend/pkg/database"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/jmoiron/sqlx"
)

const configColumns = `kind, enabled, auto_generate, default_level, notify_enabled, notify_recipients,
	expiring_warning_days, critical_stock_percentage, review_interval_hours, repeatable, updated_at, updated_by`

// ConfigFilter narrows List. Nil fields are ignored.
type ConfigFilter struct {
	Enabled      *bool
	AutoGenerate *bool
}

// ConfigRepository persists per-kind alert configurations
type ConfigRepository struct {
	db *database.DB
}

// NewConfigRepository creates a new configuration repository
func NewConfigRepository(db *database.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Get returns the configuration for kind. A missing row is reported through found, not as an error.
func (r *ConfigRepository) Get(ctx context.Context, kind domain.Kind) (*domain.Configuration, bool, error) {
	var c domain.Configuration
	query := `SELECT ` + configColumns + ` FROM alert_configurations WHERE kind = $1`
	if err := r.db.GetContext(ctx, &c, query, kind); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &c, true, nil
}

// List returns configurations ordered by kind
func (r *ConfigRepository) List(ctx context.Context, f ConfigFilter) ([]*domain.Configuration, error) {
	query := `SELECT ` + configColumns + ` FROM alert_configurations WHERE 1=1`
	var args []interface{}
	if f.Enabled != nil {
		query += ` AND enabled = ?`
		args = append(args, *f.Enabled)
	}
	if f.AutoGenerate != nil {
		query += ` AND auto_generate = ?`
		args = append(args, *f.AutoGenerate)
	}
	query += ` ORDER BY kind`

	configs := []*domain.Configuration{}
	if err := r.db.SelectContext(ctx, &configs, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return configs, nil
}

// Save overwrites every mutable field of an existing configuration
func (r *ConfigRepository) Save(ctx context.Context, c *domain.Configuration) error {
	query := `
		UPDATE alert_configurations SET
			enabled = $2, auto_generate = $3, default_level = $4, notify_enabled = $5,
			notify_recipients = $6, expiring_warning_days = $7, critical_stock_percentage = $8,
			review_interval_hours = $9, repeatable = $10, updated_at = $11, updated_by = $12
		WHERE kind = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		c.Kind, c.Enabled, c.AutoGenerate, c.DefaultLevel, c.NotifyEnabled, c.NotifyRecipients,
		c.ExpiringWarningDays, c.CriticalStockPercentage, c.ReviewIntervalHours, c.Repeatable,
		c.UpdatedAt, c.UpdatedBy,
	)
	if err != nil {
		return mapErr(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("alert configuration")
	}
	return nil
}

// ResetDefaults restores the default values on every configuration in one statement
func (r *ConfigRepository) ResetDefaults(ctx context.Context, updatedBy *string, now time.Time) (int64, error) {
	d := domain.DefaultConfiguration("")
	query := `
		UPDATE alert_configurations SET
			enabled = $1, auto_generate = $2, default_level = $3, notify_enabled = $4,
			notify_recipients = $5, expiring_warning_days = $6, critical_stock_percentage = $7,
			review_interval_hours = $8, repeatable = $9, updated_at = $10, updated_by = $11
	`

	result, err := r.db.ExecContext(ctx, query,
		d.Enabled, d.AutoGenerate, d.DefaultLevel, d.NotifyEnabled, d.NotifyRecipients,
		d.ExpiringWarningDays, d.CriticalStockPercentage, d.ReviewIntervalHours, d.Repeatable,
		now, updatedBy,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Seed inserts the default configuration for each kind that has none and
// returns how many rows were created.
func (r *ConfigRepository) Seed(ctx context.Context, kinds []domain.Kind, now time.Time) (int, error) {
	query := `
		INSERT INTO alert_configurations (` + configColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL)
		ON CONFLICT (kind) DO NOTHING
	`

	created := 0
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, kind := range kinds {
			d := domain.DefaultConfiguration(kind)
			result, err := tx.ExecContext(ctx, query,
				d.Kind, d.Enabled, d.AutoGenerate, d.DefaultLevel, d.NotifyEnabled, d.NotifyRecipients,
				d.ExpiringWarningDays, d.CriticalStockPercentage, d.ReviewIntervalHours, d.Repeatable, now,
			)
			if err != nil {
				return err
			}
			if n, _ := result.RowsAffected(); n > 0 {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// MinReviewInterval returns the smallest review interval among enabled configurations.
// ok is false when no configuration is enabled.
func (r *ConfigRepository) MinReviewInterval(ctx context.Context) (time.Duration, bool, error) {
	var hours sql.NullInt64
	query := `SELECT MIN(review_interval_hours) FROM alert_configurations WHERE enabled`
	if err := r.db.GetContext(ctx, &hours, query); err != nil {
		return 0, false, err
	}
	if !hours.Valid {
		return 0, false, nil
	}
	return time.Duration(hours.Int64) * time.Hour, true, nil
}
