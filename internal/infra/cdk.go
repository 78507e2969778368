package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// StackDeployer shells out to the CDK app that owns the CloudWatch test
// stack. Deployment output streams straight through so CodeBuild logs show
// CDK's own progress.
type StackDeployer struct {
	binary string
	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger
}

// NewStackDeployer builds a deployer that runs the cdk CLI.
func NewStackDeployer(logger *zap.Logger) *StackDeployer {
	return &StackDeployer{
		binary: "cdk",
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: logger,
	}
}

// Deploy runs cdk deploy in the given stack directory and blocks until the
// deployment finishes.
func (d *StackDeployer) Deploy(ctx context.Context, dir string) error {
	cmd := exec.CommandContext(ctx, d.binary, "deploy", "--require-approval", "never")
	cmd.Dir = dir
	cmd.Stdout = d.stdout
	cmd.Stderr = d.stderr

	d.logger.Info("deploying stack", zap.String("dir", dir))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("cdk deploy in %s: %w", dir, err)
	}
	return nil
}
