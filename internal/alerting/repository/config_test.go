package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/agrostock/agrostock-backend/internal/alerting/domain"
	"github.com/agrostock/agrostock-backend/internal/alerting/repository"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/testutil"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configCols = []string{
	"kind", "enabled", "auto_generate", "default_level", "notify_enabled", "notify_recipients",
	"expiring_warning_days", "critical_stock_percentage", "review_interval_hours", "repeatable", "updated_at", "updated_by",
}

func TestConfigRepository_Get(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewConfigRepository(mockDB.Database())

	mockDB.ExpectQuery("FROM alert_configurations WHERE kind = $1").
		WithArgs("EXPIRING_SOON").
		WillReturnRows(testutil.MockRows(configCols...).
			AddRow("EXPIRING_SOON", true, true, "MEDIUM", true, "a@farm.io,b@farm.io", 15, "20.00", 12, false, time.Now(), nil))

	cfg, found, err := repo.Get(context.Background(), domain.KindExpiringSoon)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 15, cfg.ExpiringWarningDays)
	assert.Equal(t, 20.0, cfg.CriticalStockPercentage)
	assert.Equal(t, []string{"a@farm.io", "b@farm.io"}, cfg.Recipients())
}

func TestConfigRepository_Get_Missing(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewConfigRepository(mockDB.Database())

	mockDB.ExpectQuery("FROM alert_configurations WHERE kind = $1").
		WithArgs("EXPIRED").
		WillReturnRows(testutil.MockRows(configCols...))

	cfg, found, err := repo.Get(context.Background(), domain.KindExpired)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, cfg)
}

func TestConfigRepository_List_Filters(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewConfigRepository(mockDB.Database())

	enabled := true
	mockDB.ExpectQuery("WHERE 1=1 AND enabled = $1 ORDER BY kind").
		WithArgs(true).
		WillReturnRows(testutil.MockRows(configCols...).
			AddRow("EXPIRED", true, true, "MEDIUM", false, "", 30, 20, 24, false, time.Now(), nil))

	configs, err := repo.List(context.Background(), repository.ConfigFilter{Enabled: &enabled})
	require.NoError(t, err)
	assert.Len(t, configs, 1)
}

func TestConfigRepository_Save_CheckViolation(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewConfigRepository(mockDB.Database())

	mockDB.ExpectExec("UPDATE alert_configurations SET").
		WillReturnError(&pq.Error{Code: "23514", Constraint: "alert_configurations_warning_days"})

	cfg := domain.DefaultConfiguration(domain.KindExpiringSoon)
	cfg.ExpiringWarningDays = 900
	err := repo.Save(context.Background(), &cfg)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Contains(t, appErr.Details, "expiring_warning_days")
}

func TestConfigRepository_Save_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewConfigRepository(mockDB.Database())

	mockDB.ExpectExec("UPDATE alert_configurations SET").WillReturnResult(sqlmock.NewResult(0, 0))

	cfg := domain.DefaultConfiguration(domain.KindPriceChange)
	err := repo.Save(context.Background(), &cfg)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestConfigRepository_ResetDefaults(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewConfigRepository(mockDB.Database())

	by := "user-9"
	now := time.Now()
	mockDB.ExpectExec("UPDATE alert_configurations SET").
		WithArgs(true, true, "MEDIUM", false, "", 30, 20.0, 24, false, now, "user-9").
		WillReturnResult(sqlmock.NewResult(0, 9))

	n, err := repo.ResetDefaults(context.Background(), &by, now)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
}

func TestConfigRepository_Seed(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewConfigRepository(mockDB.Database())

	mockDB.ExpectBegin()
	mockDB.ExpectExec("ON CONFLICT (kind) DO NOTHING").
		WithArgs("STOCK_CRITICAL", true, true, "MEDIUM", false, "", 30, 20.0, 24, false, testutil.AnyTime{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec("ON CONFLICT (kind) DO NOTHING").
		WithArgs("EXPIRED", true, true, "MEDIUM", false, "", 30, 20.0, 24, false, testutil.AnyTime{}).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectCommit()

	created, err := repo.Seed(context.Background(), []domain.Kind{domain.KindStockCritical, domain.KindExpired}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	mockDB.ExpectationsWereMet(t)
}

func TestConfigRepository_MinReviewInterval(t *testing.T) {
	tests := []struct {
		name   string
		value  interface{}
		want   time.Duration
		wantOK bool
	}{
		{name: "enabled configurations", value: int64(6), want: 6 * time.Hour, wantOK: true},
		{name: "none enabled", value: nil, want: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB := testutil.NewMockDB(t)
			defer mockDB.Close()
			repo := repository.NewConfigRepository(mockDB.Database())

			mockDB.ExpectQuery("SELECT MIN(review_interval_hours) FROM alert_configurations WHERE enabled").
				WillReturnRows(testutil.MockRows("min").AddRow(tt.value))

			got, ok, err := repo.MinReviewInterval(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
