package repository

import (
	"context"

	"github.com/agrostock/agrostock-backend/pkg/database"
)

// SupplierRepository looks up suppliers referenced by manual alerts
type SupplierRepository struct {
	db *database.DB
}

// NewSupplierRepository creates a new supplier repository
func NewSupplierRepository(db *database.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// Exists reports whether a supplier with id exists
func (r *SupplierRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM suppliers WHERE id = $1)`, id); err != nil {
		return false, err
	}
	return exists, nil
}
