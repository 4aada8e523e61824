// Package kubernetes provides a plugin that implements the rotate.Storage and
// rotate.Loader interfaces for storing keys in cluster secrets.
package kubernetes

import (
	"context"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/secret"
)

const (
	// LastRotatedAnnotation records when the secret was last written by a
	// rotation, in RFC 3339 format.
	LastRotatedAnnotation = "sdv-admin/last-rotated"

	// ManagedByLabel marks secrets created by this program.
	ManagedByLabel = "app.kubernetes.io/managed-by"

	managedByValue = "sdv-admin"
)

// gotsecret is the key used for caching the cluster secret fetched last.
type gotsecret struct{}

// Client implements the rotate.Storage and rotate.Loader interfaces for
// cluster secrets. Storage names are "namespace/name"; a bare name lives in
// the default namespace of the client.
type Client struct {
	cs        kubernetes.Interface
	namespace string
}

// New returns a cluster secret storage using the given clientset. Bare secret
// names are looked up in namespace.
func New(cs kubernetes.Interface, namespace string) *Client {
	return &Client{cs: cs, namespace: namespace}
}

// getCachedSecret returns the secret cached from a previous fetch.
func getCachedSecret(c secret.Cache) (*corev1.Secret, bool) {
	s, ok := c.CacheGet(gotsecret{})
	if sec, typeOk := s.(*corev1.Secret); ok && typeOk {
		return sec, true
	}
	return nil, false
}

// setCachedSecret remembers the secret just fetched or written.
func setCachedSecret(c secret.Cache, s *corev1.Secret) {
	c.CacheSet(gotsecret{}, s)
}

// Name returns "Kubernetes secrets"
func (c *Client) Name() string {
	return "Kubernetes secrets"
}

// SplitName splits a storage name into namespace and secret name, falling
// back to def for a bare name.
func SplitName(name, def string) (string, string, error) {
	ns, n, found := strings.Cut(name, "/")
	if !found {
		ns, n = def, name
	}
	if ns == "" || n == "" || strings.Contains(n, "/") {
		return "", "", fmt.Errorf("cluster secret name %q must be namespace/name", name)
	}
	return ns, n, nil
}

// get fetches the cluster secret for store. It returns nil when the secret
// does not exist yet.
func (c *Client) get(ctx context.Context, store secret.Storage) (*corev1.Secret, error) {
	if s, ok := getCachedSecret(store); ok {
		return s, nil
	}

	ns, name, err := SplitName(store.Name(), c.namespace)
	if err != nil {
		return nil, err
	}

	s, err := c.cs.CoreV1().Secrets(ns).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get cluster secret %q: %w", store.Name(), err)
	}

	setCachedSecret(store, s)
	return s, nil
}

// LastSaved returns the time recorded in the last-rotated annotation if the
// secret holds key. A secret without the annotation reports the zero time so
// that the next rotation rewrites it.
func (c *Client) LastSaved(
	ctx context.Context,
	store secret.Storage,
	key string,
) (time.Time, error) {
	s, err := c.get(ctx, store)
	if err != nil {
		return time.Time{}, err
	}

	if s == nil {
		return time.Time{}, secret.ErrKeyNotFound
	}

	if _, ok := s.Data[key]; !ok {
		return time.Time{}, secret.ErrKeyNotFound
	}

	ts, ok := s.Annotations[LastRotatedAnnotation]
	if !ok {
		return time.Time{}, nil
	}

	saved, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		config.LoggerFrom(ctx).Sugar().Warnw(
			"unreadable last rotated annotation on cluster secret",
			"store_name", store.Name(),
			"annotation", ts,
			"error", err,
		)
		return time.Time{}, nil
	}

	return saved, nil
}

// LoadKeys returns the values held by the cluster secret.
func (c *Client) LoadKeys(
	ctx context.Context,
	store secret.Storage,
) (secret.Map, error) {
	s, err := c.get(ctx, store)
	if err != nil {
		return nil, err
	}

	if s == nil {
		return nil, fmt.Errorf("cluster secret %q: %w", store.Name(), secret.ErrKeyNotFound)
	}

	out := make(secret.Map, len(s.Data)+len(s.StringData))
	for k, v := range s.Data {
		out[k] = string(v)
	}
	for k, v := range s.StringData {
		out[k] = v
	}
	return out, nil
}

// SaveKeys writes the keys into the cluster secret, creating it when missing
// and replacing the given keys when present. Other keys of an existing secret
// are kept.
func (c *Client) SaveKeys(
	ctx context.Context,
	store secret.Storage,
	keys secret.Map,
) error {
	logger := config.LoggerFrom(ctx).Sugar()

	ns, name, err := SplitName(store.Name(), c.namespace)
	if err != nil {
		return err
	}

	existing, err := c.get(ctx, store)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	secrets := c.cs.CoreV1().Secrets(ns)

	var saved *corev1.Secret
	if existing == nil {
		s := &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{
				Name:      name,
				Namespace: ns,
				Labels: map[string]string{
					ManagedByLabel: managedByValue,
				},
				Annotations: map[string]string{
					LastRotatedAnnotation: now,
				},
			},
			Type: corev1.SecretTypeOpaque,
			Data: make(map[string][]byte, len(keys)),
		}
		for k, v := range keys {
			s.Data[k] = []byte(v)
		}

		logger.Infow(
			"creating cluster secret",
			"store_name", store.Name(),
		)
		saved, err = secrets.Create(ctx, s, metav1.CreateOptions{})
	} else {
		s := existing.DeepCopy()
		if s.Data == nil {
			s.Data = make(map[string][]byte, len(keys))
		}
		if s.Annotations == nil {
			s.Annotations = make(map[string]string, 1)
		}
		for k, v := range keys {
			s.Data[k] = []byte(v)
			delete(s.StringData, k)
		}
		s.Annotations[LastRotatedAnnotation] = now

		logger.Infow(
			"replacing cluster secret",
			"store_name", store.Name(),
		)
		saved, err = secrets.Update(ctx, s, metav1.UpdateOptions{})
	}

	store.CacheClear(gotsecret{})
	if err != nil {
		return fmt.Errorf("failed to write cluster secret %q: %w", store.Name(), err)
	}

	setCachedSecret(store, saved)
	return nil
}
