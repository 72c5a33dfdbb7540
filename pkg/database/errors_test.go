package database

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name       string
		err        *pq.Error
		wantStatus int
		wantField  string
		wantMsg    string
	}{
		{
			name:       "dedup index",
			err:        &pq.Error{Code: "23505", Constraint: "alerts_active_dedup"},
			wantStatus: http.StatusConflict,
			wantMsg:    "an active alert of this kind already exists for the product",
		},
		{
			name:       "warning days bound",
			err:        &pq.Error{Code: "23514", Constraint: "alert_configurations_warning_days"},
			wantStatus: http.StatusBadRequest,
			wantField:  "expiring_warning_days",
		},
		{
			name:       "negative stock",
			err:        &pq.Error{Code: "23514", Constraint: "products_stock_non_negative"},
			wantStatus: http.StatusBadRequest,
			wantField:  "quantity",
		},
		{
			name:       "missing reference",
			err:        &pq.Error{Code: "23503", Constraint: "alerts_product_id_fkey"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "referenced record does not exist",
		},
		{
			name:       "not null",
			err:        &pq.Error{Code: "23502", Column: "title"},
			wantStatus: http.StatusBadRequest,
			wantField:  "title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := MapPQError(fmt.Errorf("insert: %w", tt.err))
			require.NotNil(t, appErr)
			assert.Equal(t, tt.wantStatus, appErr.StatusCode)
			if tt.wantField != "" {
				assert.Contains(t, appErr.Details, tt.wantField)
			}
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, appErr.Message)
			}
		})
	}
}

func TestMapPQError_PassesThroughOtherErrors(t *testing.T) {
	assert.Nil(t, MapPQError(errors.NotFound("alert")))
	assert.Nil(t, MapPQError(&pq.Error{Code: "40001"}))
}
