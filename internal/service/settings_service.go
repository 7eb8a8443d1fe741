package service

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/config"
	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/repository"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

// SettingsService owns the system settings table and serves a typed,
// cached snapshot of it.
type SettingsService struct {
	store    repository.Store
	audit    *AuditLogger
	logger   *zap.Logger
	defaults domain.Settings

	mu     sync.RWMutex
	cached *domain.Settings
}

// SettingsDependencies bundles collaborators for the settings service.
type SettingsDependencies struct {
	Store  repository.Store
	Audit  *AuditLogger
	Logger *zap.Logger
}

// NewSettingsService constructs the service.
func NewSettingsService(defaults config.SettingsDefaults, deps SettingsDependencies) *SettingsService {
	return &SettingsService{
		store:  deps.Store,
		audit:  deps.Audit,
		logger: loggerOrNop(deps.Logger),
		defaults: domain.Settings{
			CompanyName:               defaults.CompanyName,
			SupportEmail:              defaults.SupportEmail,
			PaymentLink:               strings.TrimRight(defaults.PaymentLink, "/"),
			EmailNotificationsEnabled: defaults.EmailNotificationsEnabled,
		},
	}
}

// Seed inserts the default value of every known key that has no row yet.
func (s *SettingsService) Seed(ctx context.Context) error {
	if err := s.store.Settings().InsertMissing(ctx, s.defaults.Rows()); err != nil {
		return apperrors.MapStoreError(err)
	}
	s.invalidate()
	return nil
}

// Current returns the typed settings. Rows override defaults.
func (s *SettingsService) Current(ctx context.Context) (domain.Settings, error) {
	s.mu.RLock()
	if s.cached != nil {
		snapshot := *s.cached
		s.mu.RUnlock()
		return snapshot, nil
	}
	s.mu.RUnlock()

	rows, err := s.store.Settings().List(ctx)
	if err != nil {
		return s.defaults, apperrors.MapStoreError(err)
	}
	snapshot := s.defaults.Apply(rows)

	s.mu.Lock()
	s.cached = &snapshot
	s.mu.Unlock()
	return snapshot, nil
}

// CurrentOrDefault is Current for callers that cannot fail, such as
// notification handlers.
func (s *SettingsService) CurrentOrDefault(ctx context.Context) domain.Settings {
	current, err := s.Current(ctx)
	if err != nil {
		s.logger.Warn("settings unavailable, using defaults", zap.Error(err))
	}
	return current
}

// List returns the raw rows.
func (s *SettingsService) List(ctx context.Context) ([]domain.SystemSetting, error) {
	rows, err := s.store.Settings().List(ctx)
	if err != nil {
		return nil, apperrors.MapStoreError(err)
	}
	return rows, nil
}

// Update writes one known key. Last write wins.
func (s *SettingsService) Update(ctx context.Context, actorID, key, value, description string, meta domain.RequestMeta) (*domain.SystemSetting, error) {
	if !domain.KnownSetting(key) {
		return nil, apperrors.NewNotFound("setting", map[string]any{"key": key})
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, apperrors.NewValidationError("value is required", map[string]any{"field": "value"})
	}
	if key == domain.SettingEmailNotificationsEnabled {
		if _, err := strconv.ParseBool(strings.ToLower(value)); err != nil {
			return nil, apperrors.NewValidationError("value must be true or false", map[string]any{"key": key, "value": value})
		}
		value = strings.ToLower(value)
	}

	if strings.TrimSpace(description) == "" {
		description = domain.SettingDescriptions[key]
	}
	setting := &domain.SystemSetting{Key: key, Value: value, Description: description}
	if err := s.store.Settings().Upsert(ctx, setting); err != nil {
		return nil, apperrors.MapStoreError(err)
	}
	s.invalidate()

	s.audit.RecordFor(ctx, actorID, domain.ActionAdminSettingUpdated, "Admin updated system setting: "+key, meta)
	return setting, nil
}

func (s *SettingsService) invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
