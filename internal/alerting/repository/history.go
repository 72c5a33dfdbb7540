package repository

import (
	"context"
	"strings"

	"github.com/agrostock/agrostock-backend/internal/alerting/domain"
	"github.com/agrostock/agrostock-backend/pkg/database"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// HistoryFilter narrows history listings
type HistoryFilter struct {
	AlertID   string
	ChangedBy string
	FieldName string
	Page      int
	PerPage   int
}

// HistoryRepository reads the append-only alert history
type HistoryRepository struct {
	db *database.DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// insertHistory appends one entry inside the caller's transaction
func insertHistory(ctx context.Context, exec sqlx.ExecerContext, e *domain.HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	query := `
		INSERT INTO alert_history (id, alert_id, field_name, old_value, new_value, changed_at, changed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := exec.ExecContext(ctx, query,
		e.ID, e.AlertID, e.FieldName, e.OldValue, e.NewValue, e.ChangedAt, e.ChangedBy,
	)
	return err
}

// ListByAlert returns the history of one alert, newest first
func (r *HistoryRepository) ListByAlert(ctx context.Context, alertID string) ([]*domain.HistoryEntry, error) {
	query := `
		SELECT id, alert_id, field_name, old_value, new_value, changed_at, changed_by
		FROM alert_history WHERE alert_id = $1
		ORDER BY changed_at DESC
	`

	entries := []*domain.HistoryEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, alertID); err != nil {
		return nil, err
	}
	return entries, nil
}

// List pages through history across alerts, newest first
func (r *HistoryRepository) List(ctx context.Context, f HistoryFilter) ([]*domain.HistoryEntry, int64, error) {
	clauses := []string{"1=1"}
	var args []interface{}
	if f.AlertID != "" {
		clauses = append(clauses, "alert_id = ?")
		args = append(args, f.AlertID)
	}
	if f.ChangedBy != "" {
		clauses = append(clauses, "changed_by = ?")
		args = append(args, f.ChangedBy)
	}
	if f.FieldName != "" {
		clauses = append(clauses, "field_name = ?")
		args = append(args, f.FieldName)
	}
	where := strings.Join(clauses, " AND ")

	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM alert_history WHERE `+where), args...); err != nil {
		return nil, 0, err
	}

	page, perPage := f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}

	query := r.db.Rebind(`SELECT id, alert_id, field_name, old_value, new_value, changed_at, changed_by
		FROM alert_history WHERE ` + where + ` ORDER BY changed_at DESC LIMIT ? OFFSET ?`)
	args = append(args, perPage, (page-1)*perPage)

	entries := []*domain.HistoryEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
