package domain

// Summary aggregates alert counts for dashboards
type Summary struct {
	Total                 int64            `json:"total"`
	Pending               int64            `json:"pending"`
	Read                  int64            `json:"read"`
	Handled               int64            `json:"handled"`
	Dismissed             int64            `json:"dismissed"`
	Urgent                int64            `json:"urgent"`
	ByKind                map[string]int64 `json:"by_kind"`
	ByLevel               map[string]int64 `json:"by_level"`
	AverageResolutionDays float64          `json:"average_resolution_days"`
	Monthly               map[string]int64 `json:"monthly"`
}

// MovementDirection is the sign of a stock movement
type MovementDirection string

const (
	MovementIn  MovementDirection = "IN"
	MovementOut MovementDirection = "OUT"
)

// StockAdjustment is the outcome of applying a delta to a product's stock
type StockAdjustment struct {
	Product    *Product `json:"product"`
	MovementID string   `json:"movement_id"`
	Delta      float64  `json:"delta"`
}
