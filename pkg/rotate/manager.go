package rotate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/metrics"
	"github.com/zostay/sdv-admin/pkg/plugin"
	"github.com/zostay/sdv-admin/pkg/secret"
)

// Manager provides the business logic for detecting whether secrets in the
// associated Client require rotation. If so, it tells the rotation client to
// perform the rotation. It then notifies all storages of the updated key
// values and, when every storage has them, retires the replaced secret.
type Manager struct {
	plugins *plugin.Manager

	client Client

	rotateAfter time.Duration

	dryRun bool
	force  bool

	secrets []config.Secret
}

// New constructs a new object to perform secret rotation.
func New(
	rc Client,
	rotateAfter time.Duration,
	dryRun bool,
	force bool,
	plugins *plugin.Manager,
	secrets []config.Secret,
) *Manager {
	return &Manager{
		plugins:     plugins,
		client:      rc,
		rotateAfter: rotateAfter,
		dryRun:      dryRun,
		force:       force,
		secrets:     secrets,
	}
}

// needsRotation returns true if any of these conditions is true:
//
//  1. Rotation is forced.
//  2. LastRotated() value of the secret is older than rotateAfter.
//  3. LastSaved() value of any key of this secret in any Storage is older than
//     the LastRotated() value, or the key is missing from the storage.
//
// Otherwise, this returns false. Errors other than a missing key stop the
// decision so that a misconfigured storage never silently misses a rotation.
func (m *Manager) needsRotation(
	ctx context.Context,
	s *config.Secret,
	current secret.Map,
) (bool, error) {
	logger := config.LoggerFrom(ctx).Sugar()

	if m.force {
		logger.Debugw(
			"rotation is forced",
			"secret", s.Name(),
			"client", m.client.Name(),
		)
		return true, nil
	}

	rotated, err := m.client.LastRotated(ctx, s, current)
	if err != nil {
		return false, fmt.Errorf("failed to check last rotation date: %w", err)
	}

	if time.Since(rotated) > m.rotateAfter {
		logger.Debugw(
			"secret is out of date and requires rotation",
			"secret", s.Name(),
			"client", m.client.Name(),
			"now_ts", time.Now(),
			"rotation_ts", rotated,
			"rotate_after", m.rotateAfter,
		)
		return true, nil
	}

	for i := range s.Storages {
		si := &s.Storages[i]
		store, err := FindStorage(ctx, m.plugins, si.StorageClient)
		if err != nil {
			return false, err
		}

		for storeKey := range current.Remap(si.Keys) {
			saved, err := store.LastSaved(ctx, si, storeKey)
			if errors.Is(err, secret.ErrKeyNotFound) {
				logger.Debugw(
					"secret is missing from storage",
					"secret", s.Name(),
					"storage", store.Name(),
					"store_name", si.Name(),
					"store_key", storeKey,
				)
				return true, nil
			} else if err != nil {
				return false, fmt.Errorf("failed to check last storage date of %s %q key %q: %w", store.Name(), si.Name(), storeKey, err)
			}

			if saved.Before(rotated) {
				logger.Debugw(
					"secret stored is older than most recent rotation",
					"secret", s.Name(),
					"client", m.client.Name(),
					"storage", store.Name(),
					"rotation_ts", rotated,
					"saved_ts", saved,
				)
				return true, nil
			}
		}
	}

	return false, nil
}

// rotateSecret rotates a single secret. It loads the current value, checks if
// the secret needs to be rotated by calling needsRotation(). If not, it does
// nothing further. If so, it tells the rotation client to mint a new secret,
// saves it in all configured storage locations, and then retires the old
// secret. Each step runs only when every previous step succeeded.
func (m *Manager) rotateSecret(ctx context.Context, s *config.Secret) (string, error) {
	logger := config.LoggerFrom(ctx).Sugar()

	current, err := LoadCurrent(ctx, m.plugins, s)
	if err != nil {
		return metrics.ResultFailure, err
	}

	needed, err := m.needsRotation(ctx, s, current)
	if err != nil {
		return metrics.ResultFailure, err
	} else if !needed {
		return metrics.ResultSkipped, nil
	}

	if m.dryRun {
		logger.Infow(
			"dry run: here's where the secret would get rotated",
			"secret", s.Name(),
			"client", m.client.Name(),
		)
		return metrics.ResultDryRun, nil
	}

	newSecrets, err := m.client.RotateSecret(ctx, s, current)
	if err != nil {
		return metrics.ResultFailure, fmt.Errorf("failed to mint a new secret: %w", err)
	}

	for i := range s.Storages {
		si := &s.Storages[i]
		store, err := FindStorage(ctx, m.plugins, si.StorageClient)
		if err == nil {
			err = store.SaveKeys(ctx, si, newSecrets.Remap(si.Keys))
		}
		if err != nil {
			logger.Errorw(
				"failed to update storage with newly rotated secrets; the old secret is left active",
				"secret", s.Name(),
				"client", m.client.Name(),
				"store_name", si.Name(),
				"error", err,
			)
			return metrics.ResultFailure, fmt.Errorf("failed to store rotated secret in %q: %w", si.Name(), err)
		}

		logger.Infow(
			"stored rotated secret",
			"secret", s.Name(),
			"storage", store.Name(),
			"store_name", si.Name(),
		)
	}

	if r, ok := m.client.(Retirer); ok {
		err := r.RetireSecret(ctx, s, current, newSecrets)
		if err != nil {
			return metrics.ResultFailure, fmt.Errorf("failed to retire the replaced secret: %w", err)
		}
	}

	return metrics.ResultSuccess, nil
}

// RotateSecrets goes through all the configured secrets, determines which
// require rotation, either because the time since the last rotation is greater
// than the configured maximum duration or because one of the storages has a
// copy of the secret that is older than the last rotation.
//
// Each rotation that is needed is performed and all storages associated with
// each rotation are updated. The first secret that fails stops the run.
func (m *Manager) RotateSecrets(ctx context.Context) error {
	logger := config.LoggerFrom(ctx).Sugar()
	for i := range m.secrets {
		s := &m.secrets[i]
		logger.Debugw(
			"examining secret for rotation",
			"secret", s.Name(),
			"client", m.client.Name(),
		)

		result, err := m.rotateSecret(ctx, s)
		metrics.RotationsTotal.WithLabelValues(m.client.Name(), result).Inc()
		if err != nil {
			return fmt.Errorf("failed to rotate secret %q: %w", s.Name(), err)
		}
	}

	return nil
}
