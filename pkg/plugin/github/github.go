// Package github provides a plugin that implements the rotate.Storage
// interface for storing keys in GitHub Actions repository secrets.
package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v42/github"
	"github.com/jamesruan/sodium"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/secret"
)

// secretUpdatedAt is the container for last updated date's cache keys.
type secretUpdatedAt struct {
	name string
}

// secretsListed marks that every secret of the repository has been cached.
type secretsListed struct{}

// SealFunc encrypts a secret value for the repository public key.
type SealFunc func(publicKey, value []byte) []byte

// sodiumSeal seals value in an anonymous libsodium box, as GitHub requires.
func sodiumSeal(publicKey, value []byte) []byte {
	pk := sodium.BoxPublicKey{Bytes: sodium.Bytes(publicKey)}
	return sodium.Bytes(value).SealedBox(pk)
}

// Client implements the rotate.Storage interface for storing keys following
// rotation.
//
// To use this client, a GITHUB_TOKEN environment variable must be set to a
// github access token with adequate permissions to update action secrets.
type Client struct {
	gc   *github.Client
	seal SealFunc
}

// New returns a client storing secrets through gc.
func New(gc *github.Client) *Client {
	return &Client{gc: gc, seal: sodiumSeal}
}

// parts splits a storage name into the owner/repo form used for github
// projects.
func parts(s secret.Storage) (string, string, error) {
	o, r, found := strings.Cut(s.Name(), "/")
	if !found || o == "" || r == "" {
		return "", "", fmt.Errorf("github storage name %q must be owner/repo", s.Name())
	}
	return o, r, nil
}

// setCachedKeyTime is a helper that stores the cached secret UpdatedAt value.
func setCachedKeyTime(c secret.Cache, key string, upd time.Time) {
	c.CacheSet(secretUpdatedAt{key}, upd)
}

// getCachedKeyTime is a helper that retrieves the cached secret UpdatedAt
// value.
func getCachedKeyTime(c secret.Cache, key string) (time.Time, bool) {
	t, ok := c.CacheGet(secretUpdatedAt{key})
	if upd, typeOk := t.(time.Time); ok && typeOk {
		return upd, true
	}
	return time.Time{}, false
}

// Name returns "github action secrets"
func (c *Client) Name() string {
	return "github action secrets"
}

// LastSaved checks for the given key on the given repository to see when it
// was last saved. A key the repository does not have returns
// secret.ErrKeyNotFound.
func (c *Client) LastSaved(
	ctx context.Context,
	store secret.Storage,
	key string,
) (time.Time, error) {
	if upd, ok := getCachedKeyTime(store, key); ok {
		return upd, nil
	}
	if _, listed := store.CacheGet(secretsListed{}); listed {
		return time.Time{}, secret.ErrKeyNotFound
	}

	owner, repo, err := parts(store)
	if err != nil {
		return time.Time{}, err
	}

	opts := &github.ListOptions{PerPage: 100}
	for {
		gsecs, res, err := c.gc.Actions.ListRepoSecrets(ctx, owner, repo, opts)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to list github action secrets of %q: %w", store.Name(), err)
		}

		for _, gsec := range gsecs.Secrets {
			setCachedKeyTime(store, gsec.Name, gsec.UpdatedAt.Time)
		}

		if res.NextPage == 0 {
			break
		}
		opts.Page = res.NextPage
	}
	store.CacheSet(secretsListed{}, true)

	if upd, ok := getCachedKeyTime(store, key); ok {
		return upd, nil
	}
	return time.Time{}, secret.ErrKeyNotFound
}

// SaveKeys saves each of the secrets given in the repository.
func (c *Client) SaveKeys(
	ctx context.Context,
	store secret.Storage,
	ss secret.Map,
) error {
	owner, repo, err := parts(store)
	if err != nil {
		return err
	}

	pubKey, _, err := c.gc.Actions.GetRepoPublicKey(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("failed to retrieve github project public key for project %q: %w", store.Name(), err)
	}

	decKeyBytes, err := base64.StdEncoding.DecodeString(pubKey.GetKey())
	if err != nil {
		return fmt.Errorf("failed to decode github project public key string for project %q: %w", store.Name(), err)
	}

	keyIDStr := pubKey.GetKeyID()

	logger := config.LoggerFrom(ctx).Sugar()
	for key, sec := range ss {
		keySealed := c.seal(decKeyBytes, []byte(sec))
		keyEncSealed := base64.StdEncoding.EncodeToString(keySealed)

		logger.Debugw(
			"updating github action secret",
			"storage", store.Name(),
			"secret", key,
		)

		encSec := &github.EncryptedSecret{
			Name:           key,
			KeyID:          keyIDStr,
			EncryptedValue: keyEncSealed,
		}
		_, err = c.gc.Actions.CreateOrUpdateRepoSecret(ctx, owner, repo, encSec)
		if err != nil {
			return fmt.Errorf("failed to create or update github action secret named %q for project %q: %w", key, store.Name(), err)
		}

		setCachedKeyTime(store, key, time.Now())
	}

	return nil
}
