package domain

import "time"

// Product is the ledger's view of a stocked item
type Product struct {
	ID             string     `json:"id" db:"id"`
	Code           string     `json:"code" db:"code"`
	Name           string     `json:"name" db:"name"`
	Unit           string     `json:"unit" db:"unit"`
	CurrentStock   float64    `json:"current_stock" db:"current_stock"`
	MinimumStock   float64    `json:"minimum_stock" db:"minimum_stock"`
	MaximumStock   *float64   `json:"maximum_stock,omitempty" db:"maximum_stock"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty" db:"expiration_date"`
	Lot            *string    `json:"lot,omitempty" db:"lot"`
	Active         bool       `json:"active" db:"active"`
}

// StockPercentage is current stock as a percentage of the minimum.
// A non-positive minimum yields 0.
func (p *Product) StockPercentage() float64 {
	if p.MinimumStock <= 0 {
		return 0
	}
	return p.CurrentStock / p.MinimumStock * 100
}

// LotOrEmpty returns the lot number or ""
func (p *Product) LotOrEmpty() string {
	if p.Lot == nil {
		return ""
	}
	return *p.Lot
}

// DaysUntilExpiration counts calendar days from today to the expiration date
func (p *Product) DaysUntilExpiration(today time.Time) int {
	if p.ExpirationDate == nil {
		return 0
	}
	return int(Date(*p.ExpirationDate).Sub(Date(today)).Hours() / 24)
}

// Date truncates t to midnight UTC of its calendar day
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
