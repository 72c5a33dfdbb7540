package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ProductFixture represents test product ledger data
type ProductFixture struct {
	ID             string
	Code           string
	Name           string
	Unit           string
	CurrentStock   float64
	MinimumStock   float64
	ExpirationDate *time.Time
	Lot            *string
	Active         bool
}

// SupplierFixture represents test supplier data
type SupplierFixture struct {
	ID     string
	Name   string
	Email  string
	Active bool
}

// FixtureFactory creates test fixtures with unique codes
type FixtureFactory struct {
	mu      sync.Mutex
	counter int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

func (f *FixtureFactory) nextSeq() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	return f.counter
}

// Product creates a product fixture with sensible defaults: 50 kg in stock, minimum 20
func (f *FixtureFactory) Product(opts ...func(*ProductFixture)) ProductFixture {
	seq := f.nextSeq()
	p := ProductFixture{
		ID:           uuid.New().String(),
		Code:         fmt.Sprintf("PRD-%04d", seq),
		Name:         fmt.Sprintf("Product %d", seq),
		Unit:         "kg",
		CurrentStock: 50,
		MinimumStock: 20,
		Active:       true,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithStock sets current and minimum stock
func WithStock(current, minimum float64) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.CurrentStock = current
		p.MinimumStock = minimum
	}
}

// WithExpiration sets the expiration date and lot
func WithExpiration(date time.Time, lot string) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.ExpirationDate = &date
		if lot != "" {
			p.Lot = &lot
		}
	}
}

// WithProductName sets the product name
func WithProductName(name string) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.Name = name
	}
}

// Inactive marks the product as inactive
func Inactive() func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.Active = false
	}
}

// Supplier creates a supplier fixture
func (f *FixtureFactory) Supplier() SupplierFixture {
	seq := f.nextSeq()
	return SupplierFixture{
		ID:     uuid.New().String(),
		Name:   fmt.Sprintf("Supplier %d", seq),
		Email:  fmt.Sprintf("supplier%d@example.com", seq),
		Active: true,
	}
}

// InsertProduct writes a product fixture to the ledger tables
func InsertProduct(ctx context.Context, db sqlx.ExecerContext, p ProductFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO products (id, code, name, unit, current_stock, minimum_stock, expiration_date, lot, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Code, p.Name, p.Unit, p.CurrentStock, p.MinimumStock, p.ExpirationDate, p.Lot, p.Active,
	)
	return err
}

// InsertSupplier writes a supplier fixture
func InsertSupplier(ctx context.Context, db sqlx.ExecerContext, s SupplierFixture) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO suppliers (id, name, email, active) VALUES ($1, $2, $3, $4)`,
		s.ID, s.Name, s.Email, s.Active,
	)
	return err
}
