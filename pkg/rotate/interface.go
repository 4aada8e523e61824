package rotate

import (
	"context"
	"time"

	"github.com/zostay/sdv-admin/pkg/secret"
)

// Storage is a place where rotated secrets are kept for the workloads using
// them.
type Storage interface {
	Name() string
	LastSaved(context.Context, secret.Storage, string) (time.Time, error)
	SaveKeys(context.Context, secret.Storage, secret.Map) error
}

// Loader is a Storage that can also read back the secret it holds. The first
// Loader among a secret's storages is where the currently active credential
// is read from before rotation.
type Loader interface {
	Storage
	LoadKeys(context.Context, secret.Storage) (secret.Map, error)
}

// Storages is a list of storage clients.
type Storages []Storage

// Client is a rotation client. The current secret map passed in is the
// credential in use before rotation, keyed by the client's own key names.
type Client interface {
	Name() string
	LastRotated(context.Context, secret.Info, secret.Map) (time.Time, error)
	RotateSecret(context.Context, secret.Info, secret.Map) (secret.Map, error)
}

// Retirer is implemented by rotation clients that retire the replaced secret
// once the new one is stored everywhere.
type Retirer interface {
	RetireSecret(ctx context.Context, s secret.Info, old, new secret.Map) error
}
