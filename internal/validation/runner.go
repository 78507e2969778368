package validation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
	"go.uber.org/zap"
)

// DelayUnavailable marks a case whose log delay could not be measured, for
// example when ECS already reaped the task.
const DelayUnavailable = "unavailable"

// Case describes one validator invocation and, once run, its outcome.
type Case struct {
	LoggerName  string
	LoggerImage string
	Throughput  string

	InputRecords int
	LogDelay     string
	Prefix       string

	Output   Output
	ExitCode int
}

// Runner spawns the external validator once per test case. The validator
// binary is opaque; only its stdout report format is relied on.
type Runner struct {
	argv     []string
	region   string
	bucket   string
	logGroup string
	plugin   string
	logger   *zap.Logger
}

// NewRunner builds a runner from the configured validator command line.
func NewRunner(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	argv := strings.Fields(cfg.ValidatorCommand)
	if len(argv) == 0 {
		return nil, errors.New("validation: empty validator command")
	}
	return &Runner{
		argv:     argv,
		region:   cfg.Region,
		bucket:   cfg.S3BucketName,
		logGroup: cfg.LogGroupName,
		plugin:   cfg.OutputPlugin,
		logger:   logger,
	}, nil
}

// Run executes the validator for one case and parses its report into the
// case. The validator's own exit code is recorded, not treated as an error;
// an error means the process could not run at all.
func (r *Runner) Run(ctx context.Context, c *Case) error {
	args := append(append([]string{}, r.argv[1:]...),
		"-input-record", strconv.Itoa(c.InputRecords),
		"-log-delay", c.LogDelay,
		"-region", r.region,
		"-bucket", r.bucket,
		"-log-group", r.logGroup,
		"-prefix", c.Prefix,
		"-destination", r.plugin,
	)

	cmd := exec.CommandContext(ctx, r.argv[0], args...)
	cmd.Env = append(os.Environ(),
		"LOG_SOURCE_NAME="+c.LoggerName,
		"LOG_SOURCE_IMAGE="+c.LoggerImage,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Info("running validator",
		zap.String("cmd", strings.Join(cmd.Args, " ")),
		zap.String("source", c.LoggerName),
		zap.String("throughput", c.Throughput))

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		c.ExitCode = 0
	case errors.As(err, &exitErr):
		c.ExitCode = exitErr.ExitCode()
	default:
		return fmt.Errorf("validation: run validator: %w", err)
	}

	r.logger.Info("validator finished",
		zap.String("source", c.LoggerName),
		zap.String("throughput", c.Throughput),
		zap.Int("exit_code", c.ExitCode),
		zap.String("raw_stdout", stdout.String()),
		zap.String("raw_stderr", stderr.String()))

	c.Output = ParseOutput(stdout.Bytes())
	return nil
}
