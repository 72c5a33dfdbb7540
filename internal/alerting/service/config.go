package service

import (
	"context"
	"time"

	"github.com/agrostock/agrostock-backend/internal/alerting/domain"
	"github.com/agrostock/agrostock-backend/internal/alerting/repository"
	"github.com/agrostock/agrostock-backend/pkg/actor"
	"github.com/agrostock/agrostock-backend/pkg/errors"
	"github.com/agrostock/agrostock-backend/pkg/httputil"
	"github.com/agrostock/agrostock-backend/pkg/logger"
)

// ConfigService manages per-kind alert configuration
type ConfigService struct {
	configs ConfigStore
	logger  *logger.Logger
	now     Clock
}

// NewConfigService creates a new configuration service
func NewConfigService(configs ConfigStore, log *logger.Logger) *ConfigService {
	return &ConfigService{
		configs: configs,
		logger:  log.WithComponent("config-service"),
		now:     utcNow,
	}
}

// WithClock replaces the service's time source
func (s *ConfigService) WithClock(now Clock) *ConfigService {
	s.now = now
	return s
}

// Get returns the configuration for one kind
func (s *ConfigService) Get(ctx context.Context, kind domain.Kind) (*domain.Configuration, error) {
	if !kind.Valid() {
		return nil, errors.ValidationField("kind", "unknown alert kind "+string(kind))
	}
	cfg, found, err := s.configs.Get(ctx, kind)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NotFound("alert configuration")
	}
	return cfg, nil
}

// List returns configurations matching the filter, ordered by kind
func (s *ConfigService) List(ctx context.Context, f repository.ConfigFilter) ([]*domain.Configuration, error) {
	return s.configs.List(ctx, f)
}

// Update applies a partial edit. Bounds are checked before anything is written.
func (s *ConfigService) Update(ctx context.Context, kind domain.Kind, patch domain.ConfigurationPatch) (*domain.Configuration, error) {
	if err := httputil.Validate(&patch); err != nil {
		return nil, err
	}
	if patch.NotifyRecipients != nil {
		for _, r := range domain.SplitRecipients(*patch.NotifyRecipients) {
			if err := httputil.ValidateVar("notify_recipients", r, "email"); err != nil {
				return nil, err
			}
		}
	}

	cfg, err := s.Get(ctx, kind)
	if err != nil {
		return nil, err
	}

	patch.Apply(cfg)
	cfg.UpdatedAt = s.now()
	cfg.UpdatedBy = actor.FromContext(ctx).UserID()

	if err := s.configs.Save(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("kind", string(kind)).
		Str("updated_by", actor.FromContext(ctx).String()).
		Msg("alert configuration updated")
	return cfg, nil
}

// ResetDefaults restores every configuration to its default values
func (s *ConfigService) ResetDefaults(ctx context.Context) (int64, error) {
	n, err := s.configs.ResetDefaults(ctx, actor.FromContext(ctx).UserID(), s.now())
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("configurations", n).Msg("alert configurations reset to defaults")
	return n, nil
}

// Seed inserts a default configuration for every kind that has none
func (s *ConfigService) Seed(ctx context.Context) (int, error) {
	n, err := s.configs.Seed(ctx, domain.AllKinds, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int("created", n).Msg("seeded alert configurations")
	}
	return n, nil
}

// ReviewInterval returns the shortest review interval of the enabled kinds, or fallback
// when none is enabled
func (s *ConfigService) ReviewInterval(ctx context.Context, fallback time.Duration) time.Duration {
	d, ok, err := s.configs.MinReviewInterval(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Dur("fallback", fallback).Msg("failed to read review interval")
		return fallback
	}
	if !ok || d <= 0 {
		return fallback
	}
	return d
}
