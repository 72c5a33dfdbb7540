package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/agrostock/agrostock-backend/internal/alerting/domain"
	"github.com/agrostock/agrostock-backend/internal/alerting/service"
	"github.com/agrostock/agrostock-backend/pkg/actor"
	"github.com/agrostock/agrostock-backend/pkg/httputil"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// StockLedger applies stock movements
type StockLedger interface {
	AdjustStock(ctx context.Context, id string, delta float64, note string, by *string, now time.Time) (*domain.StockAdjustment, error)
}

// ProductChecker re-evaluates one product's stock alerts
type ProductChecker interface {
	CheckProduct(ctx context.Context, productID string) (*service.ProductCheck, error)
}

// AdjustStockRequest is a signed stock delta. Negative values are outgoing movements.
type AdjustStockRequest struct {
	Delta float64 `json:"delta" validate:"required"`
	Note  string  `json:"note" validate:"max=500"`
}

// AdjustStockResponse reports the movement and the alerts it opened or closed
type AdjustStockResponse struct {
	Adjustment *domain.StockAdjustment `json:"adjustment"`
	Alerts     *service.ProductCheck   `json:"alerts"`
}

// ProductHandler handles product stock endpoints
type ProductHandler struct {
	ledger  StockLedger
	checker ProductChecker
	logger  *logger.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(ledger StockLedger, checker ProductChecker, log *logger.Logger) *ProductHandler {
	return &ProductHandler{ledger: ledger, checker: checker, logger: log}
}

// Routes mounts the product endpoints
func (h *ProductHandler) Routes(r chi.Router) {
	r.Post("/{id}/adjust", h.AdjustStock)
}

// AdjustStock records a stock movement and re-checks the product's stock alerts
func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")

	adj, err := h.ledger.AdjustStock(ctx, id, req.Delta, req.Note, actor.FromContext(ctx).UserID(), time.Now().UTC())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	check, err := h.checker.CheckProduct(ctx, id)
	if err != nil {
		// The movement is committed; the next review picks the alerts up
		h.logger.WithProduct(id).Error().Err(err).Msg("failed to check stock alerts after adjustment")
		check = &service.ProductCheck{ProductID: id, Created: []*domain.Alert{}, Resolved: []*domain.Alert{}}
	}

	httputil.JSON(w, http.StatusOK, AdjustStockResponse{Adjustment: adj, Alerts: check})
}
