package secret

// Map is the object used to contain a map of keys to secret values. Upon
// rotation, the rotation plugin will return one of these objects containing
// the new secret values. The keys are the natural names the rotation plugin
// uses for each field of the secret (e.g. MTK_CONNECT_KEY).
//
// These names may be remapped by the rotation business logic to provide
// per-storage names.
type Map map[string]string

// Remap returns a copy of the map with each key renamed through keys. Keys
// without a mapping keep their name. A nil or empty keys returns a plain copy.
func (m Map) Remap(keys map[string]string) Map {
	out := make(Map, len(m))
	for k, v := range m {
		if to, ok := keys[k]; ok && to != "" {
			out[to] = v
			continue
		}
		out[k] = v
	}
	return out
}

// Unmap is the inverse of Remap: it renames storage key names back to the
// names used by the rotation plugin.
func (m Map) Unmap(keys map[string]string) Map {
	rev := make(map[string]string, len(keys))
	for from, to := range keys {
		if to != "" {
			rev[to] = from
		}
	}
	return m.Remap(rev)
}

// Get returns the value for key or ErrKeyNotFound.
func (m Map) Get(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}
