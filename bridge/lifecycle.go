package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Lifecycle installs and removes the integration's persisted state.
type Lifecycle struct {
	store      SettingsStore
	transients TransientCache
	logger     zerolog.Logger
}

func NewLifecycle(store SettingsStore, transients TransientCache, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{store: store, transients: transients, logger: logger}
}

// Activate checks the store is reachable and creates an empty credentials
// record when none exists. Existing settings are never overwritten.
func (l *Lifecycle) Activate(ctx context.Context) error {
	if l.store == nil {
		return fmt.Errorf("%w: no settings store configured", ErrMissingPrerequisite)
	}
	if err := l.store.Ping(ctx); err != nil {
		l.logger.Error().Err(err).Msg("Activation Error")
		return fmt.Errorf("%w: settings store unavailable: %w", ErrMissingPrerequisite, err)
	}

	_, err := l.store.GetCredentials(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		if err := l.store.SaveCredentials(ctx, Credentials{}); err != nil {
			return fmt.Errorf("failed to create default settings: %w", err)
		}
		l.logger.Info().Msg("default CiviCRM settings created")
	case err != nil:
		return fmt.Errorf("failed to read settings: %w", err)
	default:
		l.logger.Info().Msg("CiviCRM settings already present")
	}
	return nil
}

// Deactivate removes the credentials and every cached transient.
func (l *Lifecycle) Deactivate(ctx context.Context) error {
	if err := l.store.DeleteCredentials(ctx); err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	if l.transients != nil {
		if err := l.transients.DeleteTransient(ctx, allTransients...); err != nil {
			return fmt.Errorf("failed to delete transients: %w", err)
		}
	}
	l.logger.Info().Msg("CiviCRM settings and transients removed")
	return nil
}

// Uninstall deactivates and then deletes the settings of every form. It
// returns the number of form records removed.
func (l *Lifecycle) Uninstall(ctx context.Context) (int64, error) {
	if err := l.Deactivate(ctx); err != nil {
		return 0, err
	}
	n, err := l.store.DeleteAllForms(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete form settings: %w", err)
	}
	l.logger.Info().Int64("forms", n).Msg("form CiviCRM settings removed")
	return n, nil
}
