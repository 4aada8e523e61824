package disable

import (
	"context"
	"time"

	"github.com/zostay/sdv-admin/pkg/secret"
)

// Client is a disablement client. The current secret map is the credential
// that must stay active, keyed by the client's own key names.
type Client interface {
	Name() string

	// LastUpdated returns the creation time of the oldest secret other than
	// the current one, or the zero time if there is none.
	LastUpdated(context.Context, secret.Info, secret.Map) (time.Time, error)

	// DisableSecret disables every secret other than the current one.
	DisableSecret(context.Context, secret.Info, secret.Map) error
}
