// Package taskdef renders and registers the per-case ECS task definitions.
//
// Each output plugin ships a task definition template under
// load_tests/task_definitions with $KEY placeholders. One definition is
// rendered and registered per input logger and throughput level.
package taskdef

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/resources"
	"go.uber.org/zap"
)

// Port the TCP input logger writes to inside the task.
const loggerPort = "4560"

// RegisterAPI is the slice of the ECS API registration needs.
type RegisterAPI interface {
	RegisterTaskDefinition(ctx context.Context, params *ecs.RegisterTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.RegisterTaskDefinitionOutput, error)
}

// Generator renders task definition templates and registers the results.
type Generator struct {
	cfg    *config.Config
	api    RegisterAPI
	logger *zap.Logger

	// DumpRendered logs every rendered definition before registration.
	DumpRendered bool
}

// NewGenerator builds a Generator over the configured asset directory.
func NewGenerator(cfg *config.Config, api RegisterAPI, logger *zap.Logger) *Generator {
	return &Generator{cfg: cfg, api: api, logger: logger, DumpRendered: true}
}

// Family names the task definition for one case.
func (g *Generator) Family(inputLogger resources.InputLogger, throughput string) string {
	return fmt.Sprintf("%s%s-%s-%s", g.cfg.Prefix, g.cfg.OutputPlugin, throughput, inputLogger.Name)
}

// Render produces the task definition JSON for one case. The logger's
// logConfiguration fragment for the active plugin is rendered first and
// substituted into the main template.
func (g *Generator) Render(inputLogger resources.InputLogger, throughput, fluentConfigARN string) ([]byte, error) {
	values := g.templateValues(inputLogger, throughput, fluentConfigARN)

	logConfigPath := filepath.Join(inputLogger.LogConfigurationDir, g.cfg.OutputPlugin+".json")
	logConfig, err := renderFile(logConfigPath, values)
	if err != nil {
		return nil, err
	}
	values["$LOG_CONFIGURATION"] = logConfig

	templatePath := filepath.Join(g.cfg.AssetsDir, "task_definitions", g.cfg.OutputPlugin+".json")
	rendered, err := renderFile(templatePath, values)
	if err != nil {
		return nil, err
	}
	return []byte(rendered), nil
}

// Register validates a rendered definition and registers it with ECS.
func (g *Generator) Register(ctx context.Context, rendered []byte) error {
	if err := ValidateDocument(rendered); err != nil {
		return err
	}
	if g.DumpRendered {
		g.logger.Info("registering task definition", zap.ByteString("task_definition", rendered))
	}

	var input ecs.RegisterTaskDefinitionInput
	if err := json.Unmarshal(rendered, &input); err != nil {
		return fmt.Errorf("taskdef: decode rendered definition: %w", err)
	}
	if _, err := g.api.RegisterTaskDefinition(ctx, &input); err != nil {
		return fmt.Errorf("taskdef: register task definition: %w", err)
	}
	return nil
}

func (g *Generator) templateValues(inputLogger resources.InputLogger, throughput, fluentConfigARN string) map[string]string {
	std := resources.NewInputConfiguration(g.cfg.Platform, resources.StdInputPrefix, throughput)
	custom := resources.NewInputConfiguration(g.cfg.Platform, resources.CustomInputPrefix, throughput)

	return map[string]string{
		// App container
		"$APP_IMAGE":                 inputLogger.Image,
		"$LOGGER_RUN_TIME_IN_SECOND": strconv.Itoa(int(config.LoggerRunTime.Seconds())),

		// Firelens container
		"$FLUENT_BIT_IMAGE":          g.cfg.FluentBitImage,
		"$INPUT_NAME":                inputLogger.Name,
		"$LOGGER_PORT":               loggerPort,
		"$FLUENT_CONFIG_S3_FILE_ARN": fluentConfigARN,
		"$OUTPUT_PLUGIN":             g.cfg.OutputPlugin,

		// Task identity
		"$PREFIX":                  g.cfg.Prefix,
		"$THROUGHPUT":              throughput,
		"$TASK_ROLE_ARN":           g.cfg.TaskRoleARN,
		"$TASK_EXECUTION_ROLE_ARN": g.cfg.TaskExecutionRoleARN,
		"$CUSTOM_S3_OBJECT_NAME":   custom.S3ObjectName(),

		// CloudWatch destinations
		"$CW_LOG_GROUP_NAME":      g.cfg.LogGroupName,
		"$STD_LOG_STREAM_NAME":    std.CloudWatchStreamName(),
		"$CUSTOM_LOG_STREAM_NAME": custom.CloudWatchStreamName(),

		// Firehose destinations
		"$STD_DELIVERY_STREAM_PREFIX":    std.FirehoseStreamName(),
		"$CUSTOM_DELIVERY_STREAM_PREFIX": custom.FirehoseStreamName(),

		// Kinesis destinations
		"$STD_STREAM_PREFIX":    std.KinesisStreamName(),
		"$CUSTOM_STREAM_PREFIX": custom.KinesisStreamName(),

		// S3 destinations
		"$S3_BUCKET_NAME":     g.cfg.S3BucketName,
		"$STD_S3_OBJECT_NAME": std.S3ObjectName(),
	}
}

// renderFile reads a template and substitutes every $KEY it contains.
func renderFile(path string, values map[string]string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("taskdef: read template: %w", err)
	}
	return resources.RenderTemplate(string(raw), values), nil
}
