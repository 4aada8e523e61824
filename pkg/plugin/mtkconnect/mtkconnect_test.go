package mtkconnect

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/plugin"
	"github.com/zostay/sdv-admin/pkg/rotate"
	"github.com/zostay/sdv-admin/pkg/secret"
)

var (
	oldCreated = time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	midCreated = time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
)

func newTestClient(f *fakeServer) *Client {
	return New(http.DefaultClient, BaseURL(f.URL, defaultBasePath), testKeyName)
}

func currentMap(f *fakeServer, key string) secret.Map {
	return secret.Map{UsernameKey: f.username, KeyKey: key}
}

func TestAPIVersionAndQuery(t *testing.T) {
	f := newFakeServer(t)
	f.addKey("oldkey-secret", oldCreated)

	api := NewAPI(http.DefaultClient, BaseURL(f.URL, defaultBasePath), Credentials{f.username, "oldkey-secret"})
	ctx := context.Background()

	v, err := api.GetVersion(ctx)
	require.NoError(t, err, "version is fetched")
	assert.Equal(t, "1.2.3", v.Version)

	users, err := api.QueryUsers(ctx, "jane")
	require.NoError(t, err, "users are queried")
	require.Len(t, users, 1, "filter is applied")
	assert.Equal(t, "jane.doe", users[0].Username)

	keys, err := api.ListAPIKeys(ctx, f.userID)
	require.NoError(t, err, "keys are listed")
	assert.Equal(t, "oldkey-se", keys[0].Prefix)
	assert.Empty(t, keys[0].Key, "listings never carry the key value")
}

func TestAPIStatusError(t *testing.T) {
	f := newFakeServer(t)
	api := NewAPI(http.DefaultClient, BaseURL(f.URL, defaultBasePath), Credentials{"nobody", "wrong"})

	_, err := api.CurrentUser(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se), "non-2xx is a StatusError")
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "/users/current", se.Path)
	assert.Equal(t, "unauthorized", se.Body)
}

func TestLastRotated(t *testing.T) {
	f := newFakeServer(t)
	f.addKey("oldkey-secret", oldCreated)
	f.addKey("midkey-secret", midCreated)
	c := newTestClient(f)

	s := &config.Secret{SecretName: "mtk"}
	last, err := c.LastRotated(context.Background(), s, currentMap(f, "oldkey-secret"))
	require.NoError(t, err)
	assert.Equal(t, midCreated, last, "newest key wins")

	f.calls = nil
	_, err = c.LastRotated(context.Background(), s, currentMap(f, "oldkey-secret"))
	require.NoError(t, err)
	assert.Empty(t, f.calls, "current user is cached with the secret")
}

func TestLastRotatedSadMissingCredentials(t *testing.T) {
	f := newFakeServer(t)
	c := newTestClient(f)

	_, err := c.LastRotated(context.Background(), &config.Secret{SecretName: "mtk"}, secret.Map{})
	assert.ErrorContains(t, err, "secret is missing")
	assert.Empty(t, f.calls, "nothing is called without credentials")
}

func TestRotateAndRetire(t *testing.T) {
	f := newFakeServer(t)
	f.addKey("oldkey-secret", oldCreated)
	c := newTestClient(f)
	ctx := context.Background()
	s := &config.Secret{SecretName: "mtk"}

	old := currentMap(f, "oldkey-secret")
	fresh, err := c.RotateSecret(ctx, s, old)
	require.NoError(t, err, "rotation works")
	assert.Equal(t, f.username, fresh[UsernameKey], "username is carried over")
	assert.Equal(t, "newkey002-secret", fresh[KeyKey], "new key returned")
	assert.Equal(t, []string{"k-1", "k-2"}, f.keyIDs(), "old key still active after rotation")

	err = c.RetireSecret(ctx, s, old, fresh)
	require.NoError(t, err, "retire works")
	assert.Equal(t, []string{"k-2"}, f.keyIDs(), "only the new key is left")
}

func TestRetireSadOldKeyMissing(t *testing.T) {
	f := newFakeServer(t)
	f.addKey("newkey001-secret", midCreated)
	c := newTestClient(f)

	err := c.RetireSecret(context.Background(), &config.Secret{SecretName: "mtk"},
		currentMap(f, "gonekey-secret"),
		currentMap(f, "newkey001-secret"))
	assert.ErrorIs(t, err, ErrOldKeyNotFound)
}

func TestDisableStaleKeys(t *testing.T) {
	f := newFakeServer(t)
	f.addKey("oldkey-secret", oldCreated)
	f.addKey("midkey-secret", midCreated)
	f.addKey("curkey-secret", time.Now())
	c := newTestClient(f)
	ctx := context.Background()
	s := &config.Secret{SecretName: "mtk"}
	current := currentMap(f, "curkey-secret")

	last, err := c.LastUpdated(ctx, s, current)
	require.NoError(t, err)
	assert.Equal(t, oldCreated, last, "oldest stale key is reported")

	err = c.DisableSecret(ctx, s, current)
	require.NoError(t, err)
	assert.Equal(t, []string{"k-3"}, f.keyIDs(), "stale keys deleted")

	last, err = c.LastUpdated(ctx, s, current)
	require.NoError(t, err)
	assert.True(t, last.IsZero(), "nothing stale is left")
}

func TestDisableLeavesOtherKeysAlone(t *testing.T) {
	f := newFakeServer(t)
	f.addKey("oldkey-secret", oldCreated)
	f.addNamedKey("ci-runner", "cikey0000-secret", midCreated)
	f.addKey("curkey-secret", time.Now().Add(-time.Hour))
	f.addNamedKey("laptop", "laptopkey-secret", time.Now())
	f.addKey("nextkey00-secret", time.Now())
	c := newTestClient(f)
	ctx := context.Background()
	s := &config.Secret{SecretName: "mtk"}
	current := currentMap(f, "curkey-secret")

	last, err := c.LastUpdated(ctx, s, current)
	require.NoError(t, err)
	assert.Equal(t, oldCreated, last)

	err = c.DisableSecret(ctx, s, current)
	require.NoError(t, err)
	assert.Equal(t, []string{"k-2", "k-3", "k-4", "k-5"}, f.keyIDs(),
		"only our own keys older than the key in use are deleted")
}

func TestDisableSadCurrentKeyUnknown(t *testing.T) {
	f := newFakeServer(t)
	f.addKey("oldkey-secret", oldCreated)
	f.addKey("midkey-secret", midCreated)
	c := newTestClient(f)

	// the server accepts the key but does not list it
	current := currentMap(f, "midkey-secret")
	f.keys[1].Prefix = "elsewhere"

	err := c.DisableSecret(context.Background(), &config.Secret{SecretName: "mtk"}, current)
	require.NoError(t, err)
	assert.Equal(t, []string{"k-1", "k-2"}, f.keyIDs(), "nothing is deleted without a reference key")
}

func TestDisableSadKeepsGoing(t *testing.T) {
	f := newFakeServer(t)
	f.addKey("oldkey-secret", oldCreated)
	f.addKey("midkey-secret", midCreated)
	f.addKey("curkey-secret", time.Now())
	f.failDelete = 1
	c := newTestClient(f)

	err := c.DisableSecret(context.Background(), &config.Secret{SecretName: "mtk"}, currentMap(f, "curkey-secret"))
	assert.ErrorContains(t, err, `failed to delete API key "k-1"`)
	assert.ErrorContains(t, err, `failed to delete API key "k-2"`)
	assert.Equal(t, 2, countCalls(f, http.MethodDelete), "every stale key is attempted")
}

func countCalls(f *fakeServer, method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if len(c) > len(method) && c[:len(method)+1] == method+" " {
			n++
		}
	}
	return n
}

// memLoader is an in-memory rotate.Loader.
type memLoader struct {
	stored map[string]secret.Map
}

func (m *memLoader) Name() string { return "memory" }

func (m *memLoader) LastSaved(ctx context.Context, si secret.Storage, key string) (time.Time, error) {
	if _, ok := m.stored[si.Name()][key]; !ok {
		return time.Time{}, secret.ErrKeyNotFound
	}
	return time.Time{}, nil
}

func (m *memLoader) SaveKeys(ctx context.Context, si secret.Storage, keys secret.Map) error {
	m.stored[si.Name()] = keys
	return nil
}

func (m *memLoader) LoadKeys(ctx context.Context, si secret.Storage) (secret.Map, error) {
	return m.stored[si.Name()], nil
}

func rotationFixture(f *fakeServer) (*rotate.Manager, *memLoader) {
	store := &memLoader{stored: map[string]secret.Map{
		"mtk-connect/apikey": {"username": f.username, "password": "oldkey-secret"},
	}}

	plugins := plugin.NewManager(config.PluginList{})
	plugins.Set("cluster", store)

	secrets := []config.Secret{
		{
			SecretName: "mtk-connect",
			Storages: []config.StorageMap{
				{
					StorageClient: "cluster",
					StorageName:   "mtk-connect/apikey",
					Keys:          config.KeyMap{UsernameKey: "username", KeyKey: "password"},
				},
			},
		},
	}

	return rotate.New(newTestClient(f), 0, false, false, plugins, secrets), store
}

func TestRotationSequence(t *testing.T) {
	f := newFakeServer(t)
	f.addKey("oldkey-secret", oldCreated)
	m, store := rotationFixture(f)

	err := m.RotateSecrets(context.Background())
	require.NoError(t, err, "rotation runs")

	assert.Equal(t, []string{
		"GET /mtk-connect/api/v1/users/current",
		"POST /mtk-connect/api/v1/users/u-1/api-keys",
		"GET /mtk-connect/api/v1/users/current",
		"DELETE /mtk-connect/api/v1/users/u-1/api-keys/k-1",
	}, f.calls, "create, then look up the old key, then delete it")

	assert.Equal(t,
		secret.Map{"username": f.username, "password": "newkey002-secret"},
		store.stored["mtk-connect/apikey"],
		"the new key is stored")
	assert.Equal(t, []string{"k-2"}, f.keyIDs())
}

func TestRotationSequenceSadCreateFails(t *testing.T) {
	f := newFakeServer(t)
	f.addKey("oldkey-secret", oldCreated)
	f.failCreate = 1
	m, store := rotationFixture(f)

	err := m.RotateSecrets(context.Background())
	assert.ErrorContains(t, err, "failed to mint a new secret")
	assert.Equal(t, 0, countCalls(f, http.MethodDelete), "delete never runs without a created key")
	assert.Equal(t, "oldkey-secret", store.stored["mtk-connect/apikey"]["password"], "storage untouched")
	assert.Equal(t, []string{"k-1"}, f.keyIDs(), "old key still active")
}

func TestRotationSequenceSadDeleteFails(t *testing.T) {
	f := newFakeServer(t)
	f.addKey("oldkey-secret", oldCreated)
	f.failDelete = 1
	m, store := rotationFixture(f)

	err := m.RotateSecrets(context.Background())
	assert.ErrorContains(t, err, "failed to retire the replaced secret")
	assert.Equal(t, "newkey002-secret", store.stored["mtk-connect/apikey"]["password"], "new key stays stored")
	assert.Equal(t, []string{"k-1", "k-2"}, f.keyIDs(), "old key is left active")
}

func TestBuilder(t *testing.T) {
	b := new(builder)

	_, err := b.Build(context.Background(), &config.Plugin{Name: "mtk"})
	assert.ErrorContains(t, err, "requires the domain option")

	inst, err := b.Build(context.Background(), &config.Plugin{
		Name:    "mtk",
		Options: map[string]any{"domain": "dev.example.com", "timeout": "5s"},
	})
	require.NoError(t, err)
	c, ok := inst.(*Client)
	require.True(t, ok, "builds a *Client")
	assert.Equal(t, "https://dev.example.com/mtk-connect/api/v1", c.baseURL)
	assert.Equal(t, 5*time.Second, c.hc.Timeout)
	assert.Equal(t, defaultKeyName, c.keyName)

	assert.Equal(t, "http://127.0.0.1:80/api", BaseURL("http://127.0.0.1:80/", "/api/"))
}
