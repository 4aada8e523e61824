package github

import (
	"context"
	"fmt"
	"os"
	"reflect"

	"github.com/google/go-github/v42/github"
	"golang.org/x/oauth2"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/plugin"
)

// builder implements the plugin.Builder interface and provides the
// factory method for constructing a Client.
type builder struct{}

// Build constructs and returns a github client. The token is read from the
// environment variable named by the token_env option, GITHUB_TOKEN by default.
// A base_url option points the client at a GitHub Enterprise server.
func (b *builder) Build(ctx context.Context, c *config.Plugin) (plugin.Instance, error) {
	tokenEnv := c.String("token_env", "GITHUB_TOKEN")
	token := os.Getenv(tokenEnv)
	if token == "" {
		return nil, fmt.Errorf("plugin %q requires a github token in %s", c.Name, tokenEnv)
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{
			AccessToken: token,
		},
	)
	oc := oauth2.NewClient(ctx, ts)

	baseURL := c.String("base_url", "")
	if baseURL == "" {
		return New(github.NewClient(oc)), nil
	}

	gc, err := github.NewEnterpriseClient(baseURL, baseURL, oc)
	if err != nil {
		return nil, fmt.Errorf("plugin %q has a bad base_url: %w", c.Name, err)
	}
	return New(gc), nil
}

// init registers the plugin.
func init() {
	pkg := reflect.TypeOf(Client{}).PkgPath()
	plugin.Register(pkg, new(builder))
}
