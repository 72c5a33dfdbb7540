package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/agrostock/agrostock-backend/internal/alerting/domain"
	"github.com/agrostock/agrostock-backend/internal/alerting/repository"
	"github.com/agrostock/agrostock-backend/pkg/httputil"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// ConfigService is the configuration surface the handler depends on
type ConfigService interface {
	Get(ctx context.Context, kind domain.Kind) (*domain.Configuration, error)
	List(ctx context.Context, f repository.ConfigFilter) ([]*domain.Configuration, error)
	Update(ctx context.Context, kind domain.Kind, patch domain.ConfigurationPatch) (*domain.Configuration, error)
	ResetDefaults(ctx context.Context) (int64, error)
}

// ConfigHandler handles alert configuration endpoints
type ConfigHandler struct {
	configs ConfigService
	logger  *logger.Logger
}

// NewConfigHandler creates a new configuration handler
func NewConfigHandler(configs ConfigService, log *logger.Logger) *ConfigHandler {
	return &ConfigHandler{configs: configs, logger: log}
}

// Routes mounts the configuration endpoints
func (h *ConfigHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/reset", h.Reset)
	r.Get("/{kind}", h.Get)
	r.Patch("/{kind}", h.Update)
}

// List lists configurations
func (h *ConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	configs, err := h.configs.List(r.Context(), repository.ConfigFilter{
		Enabled:      httputil.QueryBool(r, "enabled"),
		AutoGenerate: httputil.QueryBool(r, "auto_generate"),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, configs)
}

// Get returns the configuration of one kind
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configs.Get(r.Context(), kindParam(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, cfg)
}

// Update applies a partial configuration edit
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.ConfigurationPatch
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		httputil.Error(w, err)
		return
	}

	cfg, err := h.configs.Update(r.Context(), kindParam(r), patch)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, cfg)
}

// Reset restores default values for every kind
func (h *ConfigHandler) Reset(w http.ResponseWriter, r *http.Request) {
	n, err := h.configs.ResetDefaults(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]int64{"reset": n})
}

func kindParam(r *http.Request) domain.Kind {
	return domain.Kind(strings.ToUpper(chi.URLParam(r, "kind")))
}
