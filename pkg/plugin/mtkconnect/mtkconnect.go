// Package mtkconnect provides a plugin that implements the rotate.Client,
// rotate.Retirer, and disable.Client interfaces for MTK Connect API keys.
package mtkconnect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/zostay/sdv-admin/pkg/config"
	sdverrors "github.com/zostay/sdv-admin/pkg/errors"
	"github.com/zostay/sdv-admin/pkg/secret"
)

const (
	// UsernameKey is the key that will be used to map to the MTK Connect
	// username when returned from RotateSecret().
	UsernameKey = "MTK_CONNECT_USERNAME"

	// KeyKey is the key that will be used to map to the MTK Connect API key
	// when returned from RotateSecret().
	KeyKey = "MTK_CONNECT_KEY"
)

// ErrOldKeyNotFound is returned when retiring a secret and none of the keys of
// the current user matches the replaced key.
var ErrOldKeyNotFound = errors.New("old API key not found on the current user")

// gotuser is the cache key for the user fetched with the current credentials.
type gotuser struct{}

// Client implements both the rotate.Client and disable.Client interfaces.
type Client struct {
	hc      *http.Client
	baseURL string
	keyName string
}

// New returns a client talking to the MTK Connect API at baseURL. New keys are
// created with the given keyName.
func New(hc *http.Client, baseURL, keyName string) *Client {
	return &Client{
		hc:      hc,
		baseURL: baseURL,
		keyName: keyName,
	}
}

// clearCache forgets the user fetched with the current credentials.
func clearCache(c secret.Cache) {
	c.CacheClear(gotuser{})
}

// getCache returns the user cached from a previous fetch.
func getCache(c secret.Cache) (*User, bool) {
	u, ok := c.CacheGet(gotuser{})
	if user, typeOk := u.(*User); ok && typeOk {
		return user, true
	}
	return nil, false
}

// setCache remembers the user fetched with the current credentials.
func setCache(c secret.Cache, u *User) {
	c.CacheSet(gotuser{}, u)
}

// Name returns "MTK Connect"
func (c *Client) Name() string {
	return "MTK Connect"
}

// CredentialsFrom picks the username and key out of a secret map.
func CredentialsFrom(m secret.Map) (Credentials, error) {
	creds := Credentials{
		Username: m[UsernameKey],
		Key:      m[KeyKey],
	}
	if creds.Username == "" || creds.Key == "" {
		return Credentials{}, fmt.Errorf("secret is missing %s or %s", UsernameKey, KeyKey)
	}
	return creds, nil
}

// API returns a REST client authenticating with the credentials in current.
func (c *Client) API(current secret.Map) (*API, error) {
	creds, err := CredentialsFrom(current)
	if err != nil {
		return nil, err
	}
	return NewAPI(c.hc, c.baseURL, creds), nil
}

// currentUser returns the user owning the credentials of api, fetching it
// unless it is cached with the secret.
func (c *Client) currentUser(ctx context.Context, sec secret.Info, api *API) (*User, error) {
	if u, ok := getCache(sec); ok {
		return u, nil
	}

	u, err := api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current MTK Connect user for %q: %w", sec.Name(), err)
	}

	setCache(sec, u)
	return u, nil
}

// matchesPrefix reports whether key is the full value of the key k describes.
func matchesPrefix(k APIKey, key string) bool {
	return k.Prefix != "" && strings.HasPrefix(key, k.Prefix)
}

// staleKeys returns the keys of u this client created before the key in use.
// Keys with another name were made by someone else and are never stale. When
// the key in use is not listed, nothing is stale.
func (c *Client) staleKeys(u *User, key string) []APIKey {
	cur, found := lo.Find(u.APIKeys, func(k APIKey) bool {
		return matchesPrefix(k, key)
	})
	if !found {
		return nil
	}

	return lo.Filter(u.APIKeys, func(k APIKey, _ int) bool {
		return k.Name == c.keyName &&
			!matchesPrefix(k, key) &&
			k.CreatedAt.Before(cur.CreatedAt)
	})
}

// LastRotated returns the creation date of the newest key of the user. A user
// without keys returns the zero time.
func (c *Client) LastRotated(
	ctx context.Context,
	sec secret.Info,
	current secret.Map,
) (time.Time, error) {
	api, err := c.API(current)
	if err != nil {
		return time.Time{}, err
	}

	u, err := c.currentUser(ctx, sec, api)
	if err != nil {
		return time.Time{}, err
	}

	newest := time.Time{}
	for _, k := range u.APIKeys {
		if k.CreatedAt.After(newest) {
			newest = k.CreatedAt
		}
	}
	return newest, nil
}

// RotateSecret creates a new API key for the user owning the current
// credentials. On success it returns the secret map with UsernameKey and
// KeyKey set to the new credentials. The old key is left untouched until
// RetireSecret runs.
func (c *Client) RotateSecret(
	ctx context.Context,
	sec secret.Info,
	current secret.Map,
) (secret.Map, error) {
	logger := config.LoggerFrom(ctx).Sugar()
	logger.Infow(
		"rotating MTK Connect API key",
		"client", c.Name(),
		"secret", sec.Name(),
	)

	api, err := c.API(current)
	if err != nil {
		return secret.Map{}, err
	}

	u, err := c.currentUser(ctx, sec, api)
	if err != nil {
		return secret.Map{}, err
	}

	clearCache(sec)
	k, err := api.CreateAPIKey(ctx, u.ID, c.keyName)
	if err != nil {
		return secret.Map{}, fmt.Errorf("failed to create new API key for MTK Connect user %q: %w", u.Username, err)
	}

	creds := api.Credentials()
	creds.Key = k.Key
	api.SetCredentials(creds)

	logger.Infow(
		"created new MTK Connect API key",
		"client", c.Name(),
		"secret", sec.Name(),
		"key_id", k.ID,
		"key_prefix", k.Prefix,
	)

	return secret.Map{
		UsernameKey: creds.Username,
		KeyKey:      creds.Key,
	}, nil
}

// RetireSecret fetches the current user with the new credentials, finds the
// replaced key by prefix, and deletes it.
func (c *Client) RetireSecret(
	ctx context.Context,
	sec secret.Info,
	old, new secret.Map,
) error {
	logger := config.LoggerFrom(ctx).Sugar()

	api, err := c.API(new)
	if err != nil {
		return err
	}

	clearCache(sec)
	u, err := c.currentUser(ctx, sec, api)
	if err != nil {
		return err
	}

	oldKey, newKey := old[KeyKey], new[KeyKey]
	candidates := lo.Filter(u.APIKeys, func(k APIKey, _ int) bool {
		return matchesPrefix(k, oldKey) && !matchesPrefix(k, newKey)
	})

	switch len(candidates) {
	case 0:
		return fmt.Errorf("MTK Connect user %q: %w", u.Username, ErrOldKeyNotFound)
	case 1:
	default:
		return fmt.Errorf("MTK Connect user %q has %d keys matching the old key prefix", u.Username, len(candidates))
	}

	clearCache(sec)
	err = api.DeleteAPIKey(ctx, u.ID, candidates[0].ID)
	if err != nil {
		return fmt.Errorf("failed to delete old API key %q of MTK Connect user %q: %w", candidates[0].ID, u.Username, err)
	}

	logger.Infow(
		"deleted old MTK Connect API key",
		"client", c.Name(),
		"secret", sec.Name(),
		"key_id", candidates[0].ID,
	)

	return nil
}

// LastUpdated returns the creation date of the oldest stale key of the user,
// one this client created before the key in use. When only the key in use exists, it returns the zero
// time.
func (c *Client) LastUpdated(
	ctx context.Context,
	sec secret.Info,
	current secret.Map,
) (time.Time, error) {
	api, err := c.API(current)
	if err != nil {
		return time.Time{}, err
	}

	u, err := c.currentUser(ctx, sec, api)
	if err != nil {
		return time.Time{}, err
	}

	stale := c.staleKeys(u, current[KeyKey])
	if len(stale) == 0 {
		return time.Time{}, nil
	}

	return lo.MinBy(stale, func(a, b APIKey) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	}).CreatedAt, nil
}

// DisableSecret deletes every stale key of the user. Keys created by anyone
// else and keys newer than the key in use are kept.
func (c *Client) DisableSecret(
	ctx context.Context,
	sec secret.Info,
	current secret.Map,
) error {
	logger := config.LoggerFrom(ctx).Sugar()

	api, err := c.API(current)
	if err != nil {
		return err
	}

	u, err := c.currentUser(ctx, sec, api)
	if err != nil {
		return err
	}

	clearCache(sec)
	errs := sdverrors.NewAggregate(nil)
	for _, k := range c.staleKeys(u, current[KeyKey]) {
		if err := api.DeleteAPIKey(ctx, u.ID, k.ID); err != nil {
			errs.Add(fmt.Errorf("failed to delete API key %q of MTK Connect user %q: %w", k.ID, u.Username, err))
			continue
		}

		logger.Infow(
			"deleted stale MTK Connect API key",
			"client", c.Name(),
			"secret", sec.Name(),
			"key_id", k.ID,
			"created", k.CreatedAt,
		)
	}

	return errs.ErrorOrNil()
}
