package mtkconnect

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/plugin"
)

// defaults for the MTK Connect API.
var (
	defaultBasePath = "/mtk-connect/api/v1"
	defaultTimeout  = 30 * time.Second
	defaultKeyName  = "sdv-admin"
)

// builder implements the plugin.Builder interface and provides the factory
// method for constructing a Client.
type builder struct{}

// BaseURL returns the API root for the given domain and base path. A domain
// with a scheme is used as is, otherwise https is assumed.
func BaseURL(domain, basePath string) string {
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	return strings.TrimRight(domain, "/") + "/" + strings.Trim(basePath, "/")
}

// Build constructs and returns an MTK Connect client. The domain option is
// required.
func (b *builder) Build(
	ctx context.Context,
	c *config.Plugin,
) (plugin.Instance, error) {
	domain := c.String("domain", "")
	if domain == "" {
		return nil, fmt.Errorf("plugin %q requires the domain option", c.Name)
	}

	timeout, err := c.Duration("timeout", defaultTimeout)
	if err != nil {
		return nil, err
	}

	hc := &http.Client{Timeout: timeout}
	return New(
		hc,
		BaseURL(domain, c.String("base_path", defaultBasePath)),
		c.String("key_name", defaultKeyName),
	), nil
}

// init registers the plugin.
func init() {
	pkg := reflect.TypeOf(Client{}).PkgPath()
	plugin.Register(pkg, new(builder))
}
