package kubernetes

import (
	"context"
	"fmt"
	"reflect"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/zostay/sdv-admin/pkg/config"
	"github.com/zostay/sdv-admin/pkg/plugin"
)

// defaultNamespace is where bare secret names live when no namespace option is
// given.
var defaultNamespace = "mtk-connect"

// builder implements the plugin.Builder interface and provides the factory
// method for constructing a Client.
type builder struct{}

// restConfig loads the client configuration. An explicit kubeconfig option
// wins, then the usual KUBECONFIG and ~/.kube/config rules, and finally the
// in-cluster service account.
func restConfig(kubeconfig, kubecontext string) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}

	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubecontext}
	rc, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err == nil {
		return rc, nil
	}

	if kubeconfig != "" {
		return nil, fmt.Errorf("failed to load kubeconfig %q: %w", kubeconfig, err)
	}

	rc, icErr := rest.InClusterConfig()
	if icErr != nil {
		return nil, fmt.Errorf("no kubeconfig found (%v) and not running in a cluster: %w", err, icErr)
	}
	return rc, nil
}

// Build constructs and returns a cluster secret storage client.
func (b *builder) Build(
	ctx context.Context,
	c *config.Plugin,
) (plugin.Instance, error) {
	rc, err := restConfig(c.String("kubeconfig", ""), c.String("context", ""))
	if err != nil {
		return nil, err
	}

	cs, err := kubernetes.NewForConfig(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to build cluster client: %w", err)
	}

	return New(cs, c.String("namespace", defaultNamespace)), nil
}

// init registers the plugin.
func init() {
	pkg := reflect.TypeOf(Client{}).PkgPath()
	plugin.Register(pkg, new(builder))
}
