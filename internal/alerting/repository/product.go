package repository

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/agrostock/agrostock-backend/internal/alerting/domain"
	"github.com/agrostock/agrostock-backend/pkg/database"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const productColumns = `id, code, name, unit, current_stock, minimum_stock, maximum_stock, expiration_date, lot, active`

// ProductRepository is the alert service's narrow view of the stock ledger.
// Only active products are considered by the review queries.
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product ledger repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindCritical returns products with 0 < stock <= minimum
func (r *ProductRepository) FindCritical(ctx context.Context) ([]*domain.Product, error) {
	return r.find(ctx, `current_stock > 0 AND current_stock <= minimum_stock`)
}

// FindDepleted returns products with no stock left
func (r *ProductRepository) FindDepleted(ctx context.Context) ([]*domain.Product, error) {
	return r.find(ctx, `current_stock <= 0`)
}

// FindExpiringBetween returns products expiring within [from, to], both inclusive calendar days
func (r *ProductRepository) FindExpiringBetween(ctx context.Context, from, to time.Time) ([]*domain.Product, error) {
	return r.find(ctx, `expiration_date >= $1 AND expiration_date <= $2`, domain.Date(from), domain.Date(to))
}

// FindExpiredBefore returns products whose expiration date is strictly before day
func (r *ProductRepository) FindExpiredBefore(ctx context.Context, day time.Time) ([]*domain.Product, error) {
	return r.find(ctx, `expiration_date < $1`, domain.Date(day))
}

func (r *ProductRepository) find(ctx context.Context, cond string, args ...interface{}) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE active AND ` + cond + ` ORDER BY code`
	products := []*domain.Product{}
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, err
	}
	return products, nil
}

// GetByID gets a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &p, nil
}

// Exists reports whether a product with id exists
func (r *ProductRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, id); err != nil {
		return false, err
	}
	return exists, nil
}

// AdjustStock applies delta to the product's stock and records the movement.
// A result below zero is rejected and nothing is written.
func (r *ProductRepository) AdjustStock(ctx context.Context, id string, delta float64, note string, by *string, now time.Time) (*domain.StockAdjustment, error) {
	if delta == 0 {
		return nil, errors.ValidationField("delta", "must not be zero")
	}

	var out *domain.StockAdjustment
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var p domain.Product
		query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &p, query, id); err != nil {
			if err == sql.ErrNoRows {
				return errors.NotFound("product")
			}
			return err
		}

		next := p.CurrentStock + delta
		if next < 0 {
			return errors.ValidationField("quantity", "stock cannot go below zero")
		}

		if _, err := tx.ExecContext(ctx, `UPDATE products SET current_stock = $2 WHERE id = $1`, id, next); err != nil {
			return mapErr(err)
		}

		direction := domain.MovementIn
		if delta < 0 {
			direction = domain.MovementOut
		}
		movementID := uuid.New().String()
		insert := `
			INSERT INTO movements (id, product_id, direction, quantity, note, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		if _, err := tx.ExecContext(ctx, insert,
			movementID, id, direction, math.Abs(delta), note, by, now,
		); err != nil {
			return mapErr(err)
		}

		p.CurrentStock = next
		out = &domain.StockAdjustment{Product: &p, MovementID: movementID, Delta: delta}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
