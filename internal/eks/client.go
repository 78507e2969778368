// Package eks runs the EKS half of the load test suite: one logging
// daemonset per throughput level on an existing cluster, validated against
// the CloudWatch streams the node agents produce.
package eks

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// NewKubeClient builds a clientset from the local kubeconfig, resolving it
// the way kubectl does. An explicit path overrides KUBECONFIG and the home
// directory default.
func NewKubeClient(kubeconfig string) (kubernetes.Interface, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("eks: load kubeconfig: %w", err)
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("eks: build kubernetes client: %w", err)
	}
	return client, nil
}
