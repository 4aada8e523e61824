package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// KeyMap maps the keys produced by the source rotator to the keys to use in storage.
type KeyMap map[string]string

// Plugin is used to load plugins that implement various client interfaces.
type Plugin struct {
	Name    string         `yaml:"-"`
	Package string         `yaml:"package"`
	Options map[string]any `yaml:"options"`
}

// PluginList maps the configured (lower-cased) plugin names to their
// configuration.
type PluginList map[string]Plugin

// String returns the named option as a string or def when it is not set.
func (p *Plugin) String(key, def string) string {
	if v, ok := p.Options[key]; ok && v != nil {
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return def
}

// Bool returns the named option as a boolean or def when it is not set or
// cannot be read as a boolean.
func (p *Plugin) Bool(key string, def bool) bool {
	switch v := p.Options[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(v) {
		case "true", "yes", "1":
			return true
		case "false", "no", "0":
			return false
		}
	}
	return def
}

// Duration returns the named option parsed as a duration or def when it is not
// set. An unparseable value is an error.
func (p *Plugin) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := p.Options[key]
	if !ok || v == nil {
		return def, nil
	}

	d, err := time.ParseDuration(fmt.Sprint(v))
	if err != nil {
		return 0, fmt.Errorf("plugin %q option %q is not a duration: %w", p.Name, key, err)
	}
	return d, nil
}

// Rotation is used to define a rotation process.
type Rotation struct {
	Client      string        `yaml:"client"`
	RotateAfter time.Duration `yaml:"rotate_after"`
	SecretSet   string        `yaml:"secret_set"`
}

// Disablement is used to define a disablement process.
type Disablement struct {
	Client       string        `yaml:"client"`
	DisableAfter time.Duration `yaml:"disable_after"`
	SecretSet    string        `yaml:"secret_set"`
}

// StorageMap describes how a secret should be stored when rotated.
type StorageMap struct {
	cache `yaml:"-"`

	StorageClient string `yaml:"storage"`
	StorageName   string `yaml:"name"`
	Keys          KeyMap `yaml:"keys"`
}

// Name returns the storage name, e.g. the namespace/name of a cluster secret.
func (s *StorageMap) Name() string {
	return s.StorageName
}

// Secret defines a single rotatable secret.
type Secret struct {
	cache `yaml:"-"`

	SecretName string       `yaml:"secret"`
	Storages   []StorageMap `yaml:"storages"`
}

// Name returns the name of the secret, which the rotation client uses to
// identify the account owning it.
func (s *Secret) Name() string {
	return s.SecretName
}

// SecretSet is used to define a set of secrets to use with rotation and/or
// disablement processes.
type SecretSet struct {
	Name    string   `yaml:"name"`
	Secrets []Secret `yaml:"secrets"`
}

// Config is the programmatic representation of the loaded configuration.
type Config struct {
	Plugins      PluginList    `yaml:"plugins"`
	Rotations    []Rotation    `yaml:"rotations"`
	Disablements []Disablement `yaml:"disablements"`
	SecretSets   []SecretSet   `yaml:"secret_sets"`
	Access       Access        `yaml:"access"`
}

// Load reads the YAML configuration file at the given path and prepares it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open configuration file %q: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var c Config
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := c.Prepare(); err != nil {
		return nil, fmt.Errorf("configuration file %q is invalid: %w", path, err)
	}

	return &c, nil
}

// Prepare should be called after the configuration object has been unmarshaled
// from the configuration file. This will normalize the file and fill in any
// details that can be inferred. It also checks for errors in the configuration
// that are unrelated to syntax.
//
// Returns an error if there's a problem is detected with the configuration or
// nil if no problem is found.
func (c *Config) Prepare() error {
	plugins := make(PluginList, len(c.Plugins))
	for k, p := range c.Plugins {
		lk := strings.ToLower(k)
		if _, dup := plugins[lk]; dup {
			return fmt.Errorf("plugin named %q is duplicated", k)
		}
		p.Name = lk
		plugins[lk] = p
	}
	c.Plugins = plugins

	sets := make(map[string]struct{}, len(c.SecretSets))
	for i := range c.SecretSets {
		ss := &c.SecretSets[i]
		if _, dup := sets[ss.Name]; dup {
			return fmt.Errorf("secret set named %q is duplicated", ss.Name)
		}
		sets[ss.Name] = struct{}{}

		secrets := make(map[string]struct{}, len(ss.Secrets))
		for j := range ss.Secrets {
			s := &ss.Secrets[j]
			if _, dup := secrets[s.SecretName]; dup {
				return fmt.Errorf("secret named %q is repeated twice in secret set %q", s.SecretName, ss.Name)
			}
			secrets[s.SecretName] = struct{}{}
			s.initCache()

			for k := range s.Storages {
				sm := &s.Storages[k]
				sm.initCache()
				if err := c.checkPlugin(sm.StorageClient); err != nil {
					return fmt.Errorf("storage for secret %q: %w", s.SecretName, err)
				}
			}
		}
	}

	for _, r := range c.Rotations {
		if err := c.checkPlugin(r.Client); err != nil {
			return fmt.Errorf("rotation: %w", err)
		}
		if _, ok := sets[r.SecretSet]; !ok {
			return fmt.Errorf("rotation refers to unknown secret set %q", r.SecretSet)
		}
	}

	for _, d := range c.Disablements {
		if err := c.checkPlugin(d.Client); err != nil {
			return fmt.Errorf("disablement: %w", err)
		}
		if _, ok := sets[d.SecretSet]; !ok {
			return fmt.Errorf("disablement refers to unknown secret set %q", d.SecretSet)
		}
	}

	c.Access.prepare()

	return nil
}

// checkPlugin returns an error if the named plugin is not configured.
func (c *Config) checkPlugin(name string) error {
	if _, ok := c.Plugins[strings.ToLower(name)]; !ok {
		return fmt.Errorf("no plugin named %q is configured", name)
	}
	return nil
}

// FindSecretSet returns the secret set with the given name or an error.
func (c *Config) FindSecretSet(name string) (*SecretSet, error) {
	for i := range c.SecretSets {
		ss := &c.SecretSets[i]
		if ss.Name == name {
			return ss, nil
		}
	}
	return nil, fmt.Errorf("no secret set named %q found in configuration", name)
}
