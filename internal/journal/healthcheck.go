package journal

import (
	"context"
	"log/slog"
	"time"

	"bindery/internal/config"
	"bindery/internal/logging"
)

// SilenceRegistry is the persistence surface the health check needs.
type SilenceRegistry interface {
	SilentJournals(ctx context.Context, cutoff time.Time) ([]*Journal, error)
}

// SilenceNotifier receives the silent-journal report.
type SilenceNotifier interface {
	NotifySilentJournals(ctx context.Context, journals []Journal, silenceDays int) error
}

// HealthCheck reports journals that have not contacted the staging
// server within the configured silence window.
type HealthCheck struct {
	registry    SilenceRegistry
	notifier    SilenceNotifier
	silenceDays int
	logger      *slog.Logger
}

// NewHealthCheck constructs the journal health check.
func NewHealthCheck(cfg *config.Config, registry SilenceRegistry, notifier SilenceNotifier, logger *slog.Logger) *HealthCheck {
	if logger != nil {
		logger = logger.With(logging.String(logging.FieldComponent, "healthcheck"))
	}
	return &HealthCheck{
		registry:    registry,
		notifier:    notifier,
		silenceDays: cfg.Journals.SilenceDays,
		logger:      logger,
	}
}

// Run returns journals silent past the window and, when a notifier is
// wired, alerts the operator about them.
func (h *HealthCheck) Run(ctx context.Context) ([]Journal, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -h.silenceDays)
	silent, err := h.registry.SilentJournals(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	report := make([]Journal, 0, len(silent))
	for _, j := range silent {
		report = append(report, *j)
	}

	if h.logger != nil {
		h.logger.Info("journal health check complete",
			logging.Int("silent", len(report)),
			logging.Int("silence_days", h.silenceDays))
	}
	if len(report) > 0 && h.notifier != nil {
		if err := h.notifier.NotifySilentJournals(ctx, report, h.silenceDays); err != nil {
			return report, err
		}
	}
	return report, nil
}
