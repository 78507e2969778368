package eks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"sigs.k8s.io/yaml"

	"go.uber.org/zap"

	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/resources"
)

// DaemonSets renders the per-throughput daemonset manifests and applies
// them to the cluster. Each manifest pairs the log generating app with a
// Fluent Bit sidecar on every node.
type DaemonSets struct {
	cfg    *config.Config
	client kubernetes.Interface
	logger *zap.Logger
}

// NewDaemonSets builds a manager over the configured asset directory.
func NewDaemonSets(cfg *config.Config, client kubernetes.Interface, logger *zap.Logger) *DaemonSets {
	return &DaemonSets{cfg: cfg, client: client, logger: logger}
}

// Render writes the manifest for one throughput level next to its template
// and returns the written path.
func (d *DaemonSets) Render(throughput string) (string, error) {
	templatePath := filepath.Join(d.cfg.AssetsDir, "daemonset", d.cfg.OutputPlugin+".yaml")
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("eks: read daemonset template: %w", err)
	}

	rendered := resources.RenderTemplate(string(raw), map[string]string{
		"$THROUGHPUT":        throughput,
		"$APP_IMAGE":         d.cfg.EKSAppImage,
		"$FLUENT_BIT_IMAGE":  d.cfg.FluentBitImage,
		"$TIME":              strconv.Itoa(int(config.LoggerRunTime.Seconds())),
		"$CW_LOG_GROUP_NAME": d.cfg.LogGroupName,
		"$PREFIX":            d.cfg.Prefix,
	})

	outPath := filepath.Join(d.cfg.AssetsDir, "daemonset", fmt.Sprintf("%s_%s.yaml", d.cfg.OutputPlugin, throughput))
	if err := os.WriteFile(outPath, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("eks: write rendered daemonset: %w", err)
	}
	return outPath, nil
}

// Apply creates the daemonset from a rendered manifest, replacing the
// object left over from an earlier run if there is one.
func (d *DaemonSets) Apply(ctx context.Context, manifestPath string) error {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("eks: read manifest: %w", err)
	}

	var ds appsv1.DaemonSet
	if err := yaml.UnmarshalStrict(raw, &ds); err != nil {
		return fmt.Errorf("eks: decode manifest %s: %w", filepath.Base(manifestPath), err)
	}
	if ds.Namespace == "" {
		ds.Namespace = Namespace
	}

	sets := d.client.AppsV1().DaemonSets(ds.Namespace)
	existing, err := sets.Get(ctx, ds.Name, metav1.GetOptions{})
	switch {
	case apierrors.IsNotFound(err):
		_, err = sets.Create(ctx, &ds, metav1.CreateOptions{})
	case err != nil:
		return fmt.Errorf("eks: get daemonset %s: %w", ds.Name, err)
	default:
		ds.ResourceVersion = existing.ResourceVersion
		_, err = sets.Update(ctx, &ds, metav1.UpdateOptions{})
	}
	if err != nil {
		return fmt.Errorf("eks: apply daemonset %s: %w", ds.Name, err)
	}

	d.logger.Info("daemonset applied",
		zap.String("name", ds.Name),
		zap.String("namespace", ds.Namespace))
	return nil
}
