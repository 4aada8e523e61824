package disable

import (
	"context"
	"fmt"
	"time"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/errors"
	"github.com/zostay/sdv-admin/pkg/metrics"
	"github.com/zostay/sdv-admin/pkg/plugin"
	"github.com/zostay/sdv-admin/pkg/rotate"
	"github.com/zostay/sdv-admin/pkg/secret"
)

// Manager provides the business logic for detecting whether a secret is old
// enough to require disablement or not and disable those secrets.
type Manager struct {
	plugins *plugin.Manager

	client Client

	disableAfter time.Duration

	dryRun bool

	secrets []config.Secret
}

// New constructs a new object to perform secret disablement.
func New(
	rc Client,
	disableAfter time.Duration,
	dryRun bool,
	plugins *plugin.Manager,
	secrets []config.Secret,
) *Manager {
	return &Manager{
		plugins:      plugins,
		client:       rc,
		disableAfter: disableAfter,
		dryRun:       dryRun,
		secrets:      secrets,
	}
}

// needsDisablement returns true if the secret has an inactive copy older than
// disableAfter in the past.
func (m *Manager) needsDisablement(
	ctx context.Context,
	s *config.Secret,
	current secret.Map,
) bool {
	logger := config.LoggerFrom(ctx).Sugar()

	updateDate, err := m.client.LastUpdated(ctx, s, current)
	if err != nil {
		logger.Errorw(
			"got error while checking last update date for disablement; skipping",
			"secret", s.Name(),
			"client", m.client.Name(),
			"error", err,
		)
		return false
	}

	if updateDate.IsZero() {
		logger.Debugw(
			"secret has no old copies",
			"secret", s.Name(),
			"client", m.client.Name(),
		)
		return false
	}

	hasNeed := time.Since(updateDate) > m.disableAfter
	if hasNeed {
		logger.Debugw(
			"secret is active and old enough to require disablement",
			"secret", s.Name(),
			"client", m.client.Name(),
			"now_ts", time.Now(),
			"update_ts", updateDate,
			"disable_after", m.disableAfter,
		)
	}
	return hasNeed
}

// disableSecret checks to see if the secret given requires disablement and
// disables it if it does.
func (m *Manager) disableSecret(ctx context.Context, s *config.Secret) (string, error) {
	current, err := rotate.LoadCurrent(ctx, m.plugins, s)
	if err != nil {
		return metrics.ResultFailure, err
	}

	if !m.needsDisablement(ctx, s, current) {
		return metrics.ResultSkipped, nil
	}

	if m.dryRun {
		logger := config.LoggerFrom(ctx).Sugar()
		logger.Infow(
			"dry run: here's where the old secret should get disabled",
			"secret", s.Name(),
			"client", m.client.Name(),
		)
		return metrics.ResultDryRun, nil
	}

	err = m.client.DisableSecret(ctx, s, current)
	if err != nil {
		return metrics.ResultFailure, fmt.Errorf("failed to disable old active secret %q for disabler %q: %w", s.Name(), m.client.Name(), err)
	}

	return metrics.ResultSuccess, nil
}

// DisableSecrets examines all the secrets and disables any of the inactive
// copies that have surpassed disableAfter. A failure on one secret does not
// stop the others; every failure is returned together.
func (m *Manager) DisableSecrets(ctx context.Context) error {
	logger := config.LoggerFrom(ctx).Sugar()
	failures := new(errors.Aggregate)
	for k := range m.secrets {
		s := &m.secrets[k]
		logger.Debugw(
			"examining secret for disablement",
			"secret", s.Name(),
			"client", m.client.Name(),
		)

		result, err := m.disableSecret(ctx, s)
		metrics.DisablementsTotal.WithLabelValues(m.client.Name(), result).Inc()
		if err != nil {
			logger.Errorw(
				"failed to disable secret",
				"secret", s.Name(),
				"client", m.client.Name(),
				"error", err,
			)
			failures.Add(err)
		}
	}

	return failures.ErrorOrNil()
}
