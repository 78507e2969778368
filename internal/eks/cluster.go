package eks

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"go.uber.org/zap"
)

// Namespace holds every load test workload on the cluster.
const Namespace = "load-test-fluent-bit-eks-ns"

// The cluster keeps a single managed node group that is scaled up for a run
// and back to zero afterwards.
const (
	nodeGroupName    = "ng"
	NodeTarget       = 4
	nodePollInterval = 90 * time.Second
)

// Cluster manages the test cluster's capacity and namespace. Node group
// scaling shells out to eksctl, which owns the ASG bookkeeping; everything
// else goes through the Kubernetes API.
type Cluster struct {
	client kubernetes.Interface
	logger *zap.Logger

	eksctl string
	poll   time.Duration
}

// NewCluster wraps an established client connection.
func NewCluster(client kubernetes.Interface, logger *zap.Logger) *Cluster {
	return &Cluster{
		client: client,
		logger: logger,
		eksctl: "eksctl",
		poll:   nodePollInterval,
	}
}

// ScaleNodeGroup resizes the test node group.
func (c *Cluster) ScaleNodeGroup(ctx context.Context, clusterName string, nodes int) error {
	args := []string{
		"scale", "nodegroup",
		"--cluster=" + clusterName,
		fmt.Sprintf("--nodes=%d", nodes),
		nodeGroupName,
	}
	c.logger.Info("scaling node group",
		zap.String("cluster", clusterName),
		zap.Int("nodes", nodes))

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, c.eksctl, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("eks: scale node group to %d: %w: %s", nodes, err, output.String())
	}
	return nil
}

// ReadyNodes counts the nodes currently reporting Ready.
func (c *Cluster) ReadyNodes(ctx context.Context) (int, error) {
	nodes, err := c.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return 0, fmt.Errorf("eks: list nodes: %w", err)
	}

	ready := 0
	for _, node := range nodes.Items {
		for _, cond := range node.Status.Conditions {
			if cond.Type == corev1.NodeReady && cond.Status == corev1.ConditionTrue {
				ready++
				break
			}
		}
	}
	return ready, nil
}

// WaitForNodes blocks until at least want nodes are Ready. Freshly scaled
// nodes take a few minutes to join, so the poll is deliberately slow.
func (c *Cluster) WaitForNodes(ctx context.Context, want int) error {
	for {
		ready, err := c.ReadyNodes(ctx)
		if err != nil {
			return err
		}
		if ready >= want {
			c.logger.Info("nodes ready", zap.Int("ready", ready))
			return nil
		}

		c.logger.Info("waiting for nodes", zap.Int("ready", ready), zap.Int("want", want))
		select {
		case <-time.After(c.poll):
		case <-ctx.Done():
			return fmt.Errorf("eks: wait for nodes: %w", ctx.Err())
		}
	}
}

// EnsureNamespace creates the test namespace if this is the first run on
// the cluster.
func (c *Cluster) EnsureNamespace(ctx context.Context) error {
	_, err := c.client.CoreV1().Namespaces().Get(ctx, Namespace, metav1.GetOptions{})
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("eks: get namespace %s: %w", Namespace, err)
	}

	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: Namespace}}
	if _, err := c.client.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("eks: create namespace %s: %w", Namespace, err)
	}
	c.logger.Info("namespace created", zap.String("namespace", Namespace))
	return nil
}

// DeleteNamespace tears the test namespace down along with every workload
// in it. Missing is fine; teardown is idempotent.
func (c *Cluster) DeleteNamespace(ctx context.Context) error {
	err := c.client.CoreV1().Namespaces().Delete(ctx, Namespace, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("eks: delete namespace %s: %w", Namespace, err)
	}
	return nil
}
