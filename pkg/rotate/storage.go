package rotate

import (
	"context"
	"fmt"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/plugin"
	"github.com/zostay/sdv-admin/pkg/secret"
)

// FindStorage returns a constructed storage client instance for the given name
// or an error.
func FindStorage(ctx context.Context, plugins *plugin.Manager, name string) (Storage, error) {
	inst, err := plugins.Instance(ctx, name)
	if err != nil {
		return nil, err
	}

	if store, ok := inst.(Storage); ok {
		return store, nil
	}

	return nil, fmt.Errorf("expected storage plugin for client named %q, but got %T instead", name, inst)
}

// LoadCurrent reads the secret currently in use from the first storage of s
// that is able to load it. The keys of the returned map are the rotation
// client's key names.
func LoadCurrent(
	ctx context.Context,
	plugins *plugin.Manager,
	s *config.Secret,
) (secret.Map, error) {
	for i := range s.Storages {
		si := &s.Storages[i]
		store, err := FindStorage(ctx, plugins, si.StorageClient)
		if err != nil {
			return nil, err
		}

		loader, ok := store.(Loader)
		if !ok {
			continue
		}

		stored, err := loader.LoadKeys(ctx, si)
		if err != nil {
			return nil, fmt.Errorf("failed to load current value of secret %q from %s %q: %w", s.Name(), store.Name(), si.Name(), err)
		}

		return stored.Unmap(si.Keys), nil
	}

	return nil, fmt.Errorf("none of the storages of secret %q can load its current value", s.Name())
}
