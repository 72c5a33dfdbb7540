package repository

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/agrostock/agrostock-backend/internal/alerting/domain"
	"github.com/agrostock/agrostock-backend/pkg/database"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const alertColumns = `id, kind, level, status, title, message, extra_data, product_id, movement_id, supplier_id,
	created_at, read_at, handled_at, resolved_at, created_by, read_by, handled_by,
	active, auto_generated, repeatable, notify_requested, notify_sent, notify_sent_at`

// urgentPredicate mirrors Alert.IsUrgent. The single placeholder is the reference time.
const urgentPredicate = `(level = 'URGENT' OR (status = 'PENDING' AND (
	(level = 'HIGH' AND created_at <= ?::timestamptz - INTERVAL '3 days') OR
	(level = 'MEDIUM' AND created_at <= ?::timestamptz - INTERVAL '8 days'))))`

const levelOrder = `CASE level WHEN 'URGENT' THEN 4 WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 ELSE 1 END`

// AlertFilter narrows List. Zero values are ignored.
type AlertFilter struct {
	Status        domain.Status
	Level         domain.Level
	Kind          domain.Kind
	Active        *bool
	AutoGenerated *bool
	ProductID     string
	SupplierID    string
	Search        string
	// UrgentAt restricts the result to alerts urgent at that instant
	UrgentAt *time.Time
	Page     int
	PerPage  int
}

// AlertRepository handles alert persistence
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts a new alert. A unique violation on the active dedup index
// is returned as a conflict.
func (r *AlertRepository) Create(ctx context.Context, a *domain.Alert) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.ExtraData == nil {
		a.ExtraData = domain.ExtraData{}
	}

	query := `
		INSERT INTO alerts (
			id, kind, level, status, title, message, extra_data, product_id, movement_id, supplier_id,
			created_at, created_by, active, auto_generated, repeatable, notify_requested
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Kind, a.Level, a.Status, a.Title, a.Message, a.ExtraData, a.ProductID,
		a.MovementID, a.SupplierID, a.CreatedAt, a.CreatedBy, a.Active, a.AutoGenerated,
		a.Repeatable, a.NotifyRequested,
	)
	return mapErr(err)
}

// GetByID gets an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	var a domain.Alert
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("alert")
		}
		return nil, err
	}
	return &a, nil
}

// ExistsActive reports whether the product has an active alert of the given kind
func (r *AlertRepository) ExistsActive(ctx context.Context, productID string, kind domain.Kind) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM alerts WHERE product_id = $1 AND kind = $2 AND active)`
	if err := r.db.GetContext(ctx, &exists, query, productID, kind); err != nil {
		return false, err
	}
	return exists, nil
}

// ListActiveStock returns active stock alerts attached to products, oldest first.
// A non-empty productID narrows the result to that product. The list is unbounded.
func (r *AlertRepository) ListActiveStock(ctx context.Context, productID string) ([]*domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE active AND product_id IS NOT NULL AND kind IN ('STOCK_CRITICAL', 'STOCK_DEPLETED')
		AND ($1 = '' OR product_id::text = $1)
		ORDER BY created_at`

	var alerts []*domain.Alert
	if err := r.db.SelectContext(ctx, &alerts, query, productID); err != nil {
		return nil, err
	}
	return alerts, nil
}

// Mutate locks the alert row, applies fn and persists the result together with one
// history entry per changed audited field. changedBy nil records the system.
func (r *AlertRepository) Mutate(ctx context.Context, id string, changedBy *string, now time.Time, fn func(*domain.Alert) error) (*domain.Alert, []domain.HistoryEntry, error) {
	var (
		out     *domain.Alert
		changes []domain.HistoryEntry
	)

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var a domain.Alert
		query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &a, query, id); err != nil {
			if err == sql.ErrNoRows {
				return errors.NotFound("alert")
			}
			return err
		}

		before := a.Snapshot()
		if err := fn(&a); err != nil {
			return err
		}

		update := `
			UPDATE alerts SET
				level = $2, status = $3, read_at = $4, handled_at = $5, resolved_at = $6,
				read_by = $7, handled_by = $8, active = $9, notify_sent = $10, notify_sent_at = $11
			WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, update,
			a.ID, a.Level, a.Status, a.ReadAt, a.HandledAt, a.ResolvedAt,
			a.ReadBy, a.HandledBy, a.Active, a.NotifySent, a.NotifySentAt,
		); err != nil {
			return mapErr(err)
		}

		changes = before.Diff(&a, changedBy, now)
		for i := range changes {
			if err := insertHistory(ctx, tx, &changes[i]); err != nil {
				return err
			}
		}

		out = &a
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, changes, nil
}

// MarkNotified stamps a successful notification dispatch
func (r *AlertRepository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE alerts SET notify_sent = TRUE, notify_sent_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("alert")
	}
	return nil
}

// List lists alerts with filtering, newest first
func (r *AlertRepository) List(ctx context.Context, f AlertFilter) ([]*domain.Alert, int64, error) {
	where, args := alertWhere(f)

	var total int64
	countQuery := r.db.Rebind(`SELECT COUNT(*) FROM alerts WHERE ` + where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	page, perPage := f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}

	query := r.db.Rebind(`SELECT ` + alertColumns + ` FROM alerts WHERE ` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`)
	args = append(args, perPage, (page-1)*perPage)

	alerts := []*domain.Alert{}
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

func alertWhere(f AlertFilter) (string, []interface{}) {
	clauses := []string{"1=1"}
	var args []interface{}

	add := func(clause string, values ...interface{}) {
		clauses = append(clauses, clause)
		args = append(args, values...)
	}

	if f.Status != "" {
		add("status = ?", f.Status)
	}
	if f.Level != "" {
		add("level = ?", f.Level)
	}
	if f.Kind != "" {
		add("kind = ?", f.Kind)
	}
	if f.Active != nil {
		add("active = ?", *f.Active)
	}
	if f.AutoGenerated != nil {
		add("auto_generated = ?", *f.AutoGenerated)
	}
	if f.ProductID != "" {
		add("product_id = ?", f.ProductID)
	}
	if f.SupplierID != "" {
		add("supplier_id = ?", f.SupplierID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + s + "%"
		add("(title ILIKE ? OR message ILIKE ?)", pattern, pattern)
	}
	if f.UrgentAt != nil {
		add(urgentPredicate, *f.UrgentAt, *f.UrgentAt)
	}

	return strings.Join(clauses, " AND "), args
}

// ListUrgentPending returns PENDING alerts that are urgent at now, most severe first
func (r *AlertRepository) ListUrgentPending(ctx context.Context, now time.Time) ([]*domain.Alert, error) {
	query := r.db.Rebind(`SELECT ` + alertColumns + ` FROM alerts
		WHERE status = 'PENDING' AND ` + urgentPredicate + `
		ORDER BY ` + levelOrder + ` DESC, created_at DESC`)

	alerts := []*domain.Alert{}
	if err := r.db.SelectContext(ctx, &alerts, query, now, now); err != nil {
		return nil, err
	}
	return alerts, nil
}

type keyCount struct {
	Key   string `db:"key"`
	Count int64  `db:"count"`
}

// Summary aggregates counts over every stored alert. Monthly counts cover
// the 180 days before now.
func (r *AlertRepository) Summary(ctx context.Context, now time.Time) (*domain.Summary, error) {
	var counts struct {
		Total     int64 `db:"total"`
		Pending   int64 `db:"pending"`
		Read      int64 `db:"read"`
		Handled   int64 `db:"handled"`
		Dismissed int64 `db:"dismissed"`
		Urgent    int64 `db:"urgent"`
	}
	countsQuery := r.db.Rebind(`
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
			COUNT(*) FILTER (WHERE status = 'READ') AS read,
			COUNT(*) FILTER (WHERE status = 'HANDLED') AS handled,
			COUNT(*) FILTER (WHERE status = 'DISMISSED') AS dismissed,
			COUNT(*) FILTER (WHERE status = 'PENDING' AND ` + urgentPredicate + `) AS urgent
		FROM alerts`)
	if err := r.db.GetContext(ctx, &counts, countsQuery, now, now); err != nil {
		return nil, err
	}

	byKind, err := r.groupCount(ctx, `SELECT kind AS key, COUNT(*) AS count FROM alerts GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	byLevel, err := r.groupCount(ctx, `SELECT level AS key, COUNT(*) AS count FROM alerts GROUP BY level`)
	if err != nil {
		return nil, err
	}
	monthly, err := r.groupCount(ctx, `
		SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS key, COUNT(*) AS count
		FROM alerts WHERE created_at >= $1 GROUP BY 1 ORDER BY 1`,
		now.AddDate(0, 0, -180))
	if err != nil {
		return nil, err
	}

	var avgDays sql.NullFloat64
	avgQuery := `SELECT AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)) / 86400) FROM alerts WHERE resolved_at IS NOT NULL`
	if err := r.db.GetContext(ctx, &avgDays, avgQuery); err != nil {
		return nil, err
	}

	return &domain.Summary{
		Total:                 counts.Total,
		Pending:               counts.Pending,
		Read:                  counts.Read,
		Handled:               counts.Handled,
		Dismissed:             counts.Dismissed,
		Urgent:                counts.Urgent,
		ByKind:                byKind,
		ByLevel:               byLevel,
		AverageResolutionDays: math.Round(avgDays.Float64*100) / 100,
		Monthly:               monthly,
	}, nil
}

func (r *AlertRepository) groupCount(ctx context.Context, query string, args ...interface{}) (map[string]int64, error) {
	var rows []keyCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Count
	}
	return out, nil
}

// PurgeClosedBefore deletes HANDLED and DISMISSED alerts created before cutoff
func (r *AlertRepository) PurgeClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM alerts WHERE status IN ('HANDLED', 'DISMISSED') AND created_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// mapErr converts PostgreSQL constraint errors to AppErrors and passes anything else through
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}
