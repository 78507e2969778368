package taskdef

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const taskDefTemplate = `{
  "family": "$PREFIX$OUTPUT_PLUGIN-$THROUGHPUT-$INPUT_NAME",
  "taskRoleArn": "$TASK_ROLE_ARN",
  "executionRoleArn": "$TASK_EXECUTION_ROLE_ARN",
  "containerDefinitions": [
    {
      "name": "app",
      "image": "$APP_IMAGE",
      "essential": true,
      "memoryReservation": 1024,
      "environment": [
        {"name": "TIME", "value": "$LOGGER_RUN_TIME_IN_SECOND"}
      ],
      "logConfiguration": $LOG_CONFIGURATION
    },
    {
      "name": "log_router",
      "image": "$FLUENT_BIT_IMAGE",
      "essential": true,
      "memoryReservation": 1024,
      "firelensConfiguration": {
        "type": "fluentbit",
        "options": {
          "config-file-type": "s3",
          "config-file-value": "$FLUENT_CONFIG_S3_FILE_ARN"
        }
      }
    }
  ]
}`

const logConfigFragment = `{
  "logDriver": "awsfirelens",
  "options": {
    "Name": "cloudwatch_logs",
    "log_group_name": "$CW_LOG_GROUP_NAME",
    "log_stream_name": "$STD_LOG_STREAM_NAME"
  }
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	assets := t.TempDir()

	write := func(rel, body string) {
		path := filepath.Join(assets, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	write("task_definitions/cloudwatch.json", taskDefTemplate)
	write("logger/stdout_logger/log_configuration/cloudwatch.json", logConfigFragment)

	return &config.Config{
		Platform:             config.PlatformECS,
		OutputPlugin:         config.PluginCloudWatch,
		Prefix:               "lt-",
		LogGroupName:         "load-test-group",
		FluentBitImage:       "fluent-bit:latest",
		ECSAppImage:          "app:latest",
		TaskRoleARN:          "arn:aws:iam::123456789012:role/task",
		TaskExecutionRoleARN: "arn:aws:iam::123456789012:role/exec",
		AssetsDir:            assets,
	}
}

type stubRegisterAPI struct {
	input *ecs.RegisterTaskDefinitionInput
	err   error
}

func (s *stubRegisterAPI) RegisterTaskDefinition(_ context.Context, params *ecs.RegisterTaskDefinitionInput, _ ...func(*ecs.Options)) (*ecs.RegisterTaskDefinitionOutput, error) {
	s.input = params
	return &ecs.RegisterTaskDefinitionOutput{}, s.err
}

func TestGeneratorRender(t *testing.T) {
	cfg := testConfig(t)
	g := NewGenerator(cfg, &stubRegisterAPI{}, zap.NewNop())
	stdLogger := resources.InputLoggers(cfg)[0]

	rendered, err := g.Render(stdLogger, "10m", "arn:aws:s3:::bucket/fluent-stdstream.conf")
	require.NoError(t, err)

	assert.NotContains(t, string(rendered), "$", "all placeholders must be substituted")

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rendered, &doc))
	assert.Equal(t, "lt-cloudwatch-10m-stdstream", doc["family"])

	containers := doc["containerDefinitions"].([]any)
	require.Len(t, containers, 2)

	app := containers[0].(map[string]any)
	assert.Equal(t, "app:latest", app["image"])
	logConfig := app["logConfiguration"].(map[string]any)
	options := logConfig["options"].(map[string]any)
	assert.Equal(t, "load-test-group", options["log_group_name"])
	assert.Equal(t, "ecs-std-10m", options["log_stream_name"])

	router := containers[1].(map[string]any)
	firelens := router["firelensConfiguration"].(map[string]any)
	routerOptions := firelens["options"].(map[string]any)
	assert.Equal(t, "arn:aws:s3:::bucket/fluent-stdstream.conf", routerOptions["config-file-value"])
}

func TestGeneratorFamily(t *testing.T) {
	cfg := testConfig(t)
	g := NewGenerator(cfg, &stubRegisterAPI{}, zap.NewNop())
	loggers := resources.InputLoggers(cfg)

	assert.Equal(t, "lt-cloudwatch-20m-stdstream", g.Family(loggers[0], "20m"))
	assert.Equal(t, "lt-cloudwatch-20m-tcp", g.Family(loggers[1], "20m"))
}

func TestGeneratorRegister(t *testing.T) {
	t.Run("registers a valid definition", func(t *testing.T) {
		cfg := testConfig(t)
		api := &stubRegisterAPI{}
		g := NewGenerator(cfg, api, zap.NewNop())

		rendered, err := g.Render(resources.InputLoggers(cfg)[0], "10m", "arn:aws:s3:::bucket/conf")
		require.NoError(t, err)

		require.NoError(t, g.Register(context.Background(), rendered))
		require.NotNil(t, api.input)
		assert.Equal(t, "lt-cloudwatch-10m-stdstream", *api.input.Family)
		assert.Len(t, api.input.ContainerDefinitions, 2)
	})

	t.Run("rejects a definition that fails the schema", func(t *testing.T) {
		cfg := testConfig(t)
		api := &stubRegisterAPI{}
		g := NewGenerator(cfg, api, zap.NewNop())

		err := g.Register(context.Background(), []byte(`{"containerDefinitions": []}`))
		require.Error(t, err)
		assert.Nil(t, api.input)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		cfg := testConfig(t)
		g := NewGenerator(cfg, &stubRegisterAPI{}, zap.NewNop())

		err := g.Register(context.Background(), []byte(`{"family": "x",`))
		assert.Error(t, err)
	})
}

func TestValidateDocument(t *testing.T) {
	t.Run("requires both task containers", func(t *testing.T) {
		doc := `{"family": "lt-s3-10m-tcp", "containerDefinitions": [{"name": "app", "image": "a"}]}`
		assert.Error(t, ValidateDocument([]byte(doc)))
	})

	t.Run("rejects a family with placeholder residue", func(t *testing.T) {
		doc := `{"family": "lt-$OUTPUT_PLUGIN-10m", "containerDefinitions": [
			{"name": "app", "image": "a"}, {"name": "log_router", "image": "b"}]}`
		assert.Error(t, ValidateDocument([]byte(doc)))
	})
}
