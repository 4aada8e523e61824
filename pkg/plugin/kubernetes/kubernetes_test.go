package kubernetes

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/secret"
)

var rotatedAt = time.Date(2023, time.May, 4, 12, 0, 0, 0, time.UTC)

func existingSecret() *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "mtk-connect-apikey",
			Namespace: "mtk-connect",
			Annotations: map[string]string{
				LastRotatedAnnotation: rotatedAt.Format(time.RFC3339),
			},
		},
		Data: map[string][]byte{
			"username": []byte("svc-sdv"),
			"password": []byte("oldkey-secret"),
			"other":    []byte("keep me"),
		},
	}
}

func storage(name string) *config.StorageMap {
	return &config.StorageMap{StorageClient: "cluster", StorageName: name}
}

func TestSplitName(t *testing.T) {
	ns, n, err := SplitName("tools/apikey", "def")
	require.NoError(t, err)
	assert.Equal(t, "tools", ns)
	assert.Equal(t, "apikey", n)

	ns, n, err = SplitName("apikey", "def")
	require.NoError(t, err)
	assert.Equal(t, "def", ns, "bare names use the default namespace")
	assert.Equal(t, "apikey", n)

	_, _, err = SplitName("a/b/c", "def")
	assert.ErrorContains(t, err, "must be namespace/name")

	_, _, err = SplitName("apikey", "")
	assert.ErrorContains(t, err, "must be namespace/name")
}

func TestLoadKeys(t *testing.T) {
	c := New(fake.NewSimpleClientset(existingSecret()), "mtk-connect")

	keys, err := c.LoadKeys(context.Background(), storage("mtk-connect-apikey"))
	require.NoError(t, err)
	assert.Equal(t, secret.Map{
		"username": "svc-sdv",
		"password": "oldkey-secret",
		"other":    "keep me",
	}, keys)
}

func TestLoadKeysSadMissing(t *testing.T) {
	c := New(fake.NewSimpleClientset(), "mtk-connect")

	_, err := c.LoadKeys(context.Background(), storage("mtk-connect/nope"))
	assert.ErrorIs(t, err, secret.ErrKeyNotFound)
}

func TestLastSaved(t *testing.T) {
	c := New(fake.NewSimpleClientset(existingSecret()), "mtk-connect")
	ctx := context.Background()
	store := storage("mtk-connect/mtk-connect-apikey")

	saved, err := c.LastSaved(ctx, store, "password")
	require.NoError(t, err)
	assert.Equal(t, rotatedAt, saved, "annotation is read")

	_, err = c.LastSaved(ctx, store, "missing")
	assert.ErrorIs(t, err, secret.ErrKeyNotFound, "missing key")

	_, err = c.LastSaved(ctx, storage("mtk-connect/nope"), "password")
	assert.ErrorIs(t, err, secret.ErrKeyNotFound, "missing secret")
}

func TestLastSavedNoAnnotation(t *testing.T) {
	s := existingSecret()
	s.Annotations = nil
	c := New(fake.NewSimpleClientset(s), "mtk-connect")

	saved, err := c.LastSaved(context.Background(), storage("mtk-connect/mtk-connect-apikey"), "password")
	require.NoError(t, err)
	assert.True(t, saved.IsZero(), "unannotated secrets look ancient")
}

func TestSaveKeysReplace(t *testing.T) {
	cs := fake.NewSimpleClientset(existingSecret())
	c := New(cs, "mtk-connect")
	ctx := context.Background()
	store := storage("mtk-connect/mtk-connect-apikey")

	before := time.Now().Add(-time.Second)
	err := c.SaveKeys(ctx, store, secret.Map{"password": "newkey-secret"})
	require.NoError(t, err)

	got, err := cs.CoreV1().Secrets("mtk-connect").Get(ctx, "mtk-connect-apikey", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "newkey-secret", string(got.Data["password"]), "key replaced")
	assert.Equal(t, "keep me", string(got.Data["other"]), "other keys kept")

	saved, err := c.LastSaved(ctx, store, "password")
	require.NoError(t, err)
	assert.True(t, saved.After(before), "annotation refreshed")
}

func TestSaveKeysCreate(t *testing.T) {
	cs := fake.NewSimpleClientset()
	c := New(cs, "mtk-connect")
	ctx := context.Background()

	err := c.SaveKeys(ctx, storage("tools/apikey"), secret.Map{"username": "svc-sdv", "password": "k"})
	require.NoError(t, err)

	got, err := cs.CoreV1().Secrets("tools").Get(ctx, "apikey", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, corev1.SecretTypeOpaque, got.Type)
	assert.Equal(t, managedByValue, got.Labels[ManagedByLabel])
	assert.Equal(t, "k", string(got.Data["password"]))
	assert.Contains(t, got.Annotations, LastRotatedAnnotation)
}

func TestSaveKeysSadUpdateFails(t *testing.T) {
	cs := fake.NewSimpleClientset(existingSecret())
	cs.PrependReactor("update", "secrets", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("forbidden")
	})
	c := New(cs, "mtk-connect")

	err := c.SaveKeys(context.Background(), storage("mtk-connect-apikey"), secret.Map{"password": "x"})
	assert.ErrorContains(t, err, `failed to write cluster secret "mtk-connect-apikey"`)
}

func TestValuesRoundTripBase64(t *testing.T) {
	values := secret.Map{
		"password": "Zm9v+/=\n\x00ünïcödé",
		"empty":    "",
		"username": "svc-sdv@example.com",
	}

	cs := fake.NewSimpleClientset()
	c := New(cs, "mtk-connect")
	ctx := context.Background()
	require.NoError(t, c.SaveKeys(ctx, storage("apikey"), values))

	got, err := cs.CoreV1().Secrets("mtk-connect").Get(ctx, "apikey", metav1.GetOptions{})
	require.NoError(t, err)

	wire, err := json.Marshal(got)
	require.NoError(t, err, "secret encodes to its wire form")

	var decoded corev1.Secret
	require.NoError(t, json.Unmarshal(wire, &decoded), "wire form decodes")

	cs2 := fake.NewSimpleClientset(&decoded)
	keys, err := New(cs2, "mtk-connect").LoadKeys(ctx, storage("apikey"))
	require.NoError(t, err)
	assert.Equal(t, values, keys, "values are unchanged by the base64 wire encoding")
}
