package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/agrostock/agrostock-backend/internal/alerting/domain"
	"github.com/agrostock/agrostock-backend/internal/alerting/repository"
	"github.com/agrostock/agrostock-backend/internal/alerting/service"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfigService(store *memConfigs) *service.ConfigService {
	return service.NewConfigService(store, logger.Nop()).WithClock(fixedClock)
}

func TestConfigService_Update(t *testing.T) {
	store := newMemConfigs(domain.AllKinds...)
	svc := newConfigService(store)

	days := 10
	notify := true
	recipients := " ops@farm.io,, buyer@farm.io "
	cfg, err := svc.Update(userCtx("user-3"), domain.KindExpiringSoon, domain.ConfigurationPatch{
		ExpiringWarningDays: &days,
		NotifyEnabled:       &notify,
		NotifyRecipients:    &recipients,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.ExpiringWarningDays)
	assert.True(t, cfg.NotifyEnabled)
	assert.Equal(t, "ops@farm.io,buyer@farm.io", cfg.NotifyRecipients)
	assert.Equal(t, testNow, cfg.UpdatedAt)
	require.NotNil(t, cfg.UpdatedBy)
	assert.Equal(t, "user-3", *cfg.UpdatedBy)

	stored, _, _ := store.Get(context.Background(), domain.KindExpiringSoon)
	assert.Equal(t, 10, stored.ExpiringWarningDays)
}

func TestConfigService_Update_RejectsInvalidValues(t *testing.T) {
	tooMany := 400
	zeroPct := 0.0
	longInterval := 200
	badEmail := "ops@farm.io, not-an-email"
	badLevel := domain.Level("SEVERE")

	tests := []struct {
		name  string
		patch domain.ConfigurationPatch
		field string
	}{
		{name: "warning days", patch: domain.ConfigurationPatch{ExpiringWarningDays: &tooMany}, field: "expiring_warning_days"},
		{name: "critical percentage", patch: domain.ConfigurationPatch{CriticalStockPercentage: &zeroPct}, field: "critical_stock_percentage"},
		{name: "review interval", patch: domain.ConfigurationPatch{ReviewIntervalHours: &longInterval}, field: "review_interval_hours"},
		{name: "recipient", patch: domain.ConfigurationPatch{NotifyRecipients: &badEmail}, field: "notify_recipients"},
		{name: "default level", patch: domain.ConfigurationPatch{DefaultLevel: &badLevel}, field: "default_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemConfigs(domain.AllKinds...)
			svc := newConfigService(store)

			_, err := svc.Update(context.Background(), domain.KindStockCritical, tt.patch)

			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
			assert.Contains(t, appErr.Details, tt.field)
			assert.Equal(t, 0, store.saved)
		})
	}
}

func TestConfigService_Get(t *testing.T) {
	svc := newConfigService(newMemConfigs(domain.KindExpired))

	cfg, err := svc.Get(context.Background(), domain.KindExpired)
	require.NoError(t, err)
	assert.Equal(t, domain.KindExpired, cfg.Kind)

	_, err = svc.Get(context.Background(), domain.KindPriceChange)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = svc.Get(context.Background(), "FLOOD")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestConfigService_SeedAndReset(t *testing.T) {
	store := newMemConfigs(domain.KindExpired)
	svc := newConfigService(store)
	ctx := userCtx("admin")

	created, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(domain.AllKinds)-1, created)

	again, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again)

	store.set(domain.KindExpired, func(c *domain.Configuration) { c.Enabled = false })
	n, err := svc.ResetDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(domain.AllKinds)), n)

	configs, err := svc.List(ctx, repository.ConfigFilter{})
	require.NoError(t, err)
	for _, c := range configs {
		assert.True(t, c.Enabled)
		assert.Equal(t, "admin", *c.UpdatedBy)
	}
}

func TestConfigService_ReviewInterval(t *testing.T) {
	store := newMemConfigs(domain.KindStockCritical, domain.KindExpired)
	store.set(domain.KindExpired, func(c *domain.Configuration) { c.ReviewIntervalHours = 6 })
	svc := newConfigService(store)

	assert.Equal(t, 6*time.Hour, svc.ReviewInterval(context.Background(), time.Hour))

	empty := newConfigService(newMemConfigs())
	assert.Equal(t, time.Hour, empty.ReviewInterval(context.Background(), time.Hour))
}
