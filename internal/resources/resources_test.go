package resources

import (
	"testing"

	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestinationIdentifier(t *testing.T) {
	t.Run("std route includes the prefix", func(t *testing.T) {
		c := NewInputConfiguration("ecs", StdInputPrefix, "10m")
		assert.Equal(t, "ecs-std-10m", c.DestinationIdentifier())
	})

	t.Run("custom route is bare throughput", func(t *testing.T) {
		c := NewInputConfiguration("ecs", CustomInputPrefix, "20m")
		assert.Equal(t, "ecs-20m", c.DestinationIdentifier())
	})

	t.Run("all destination names share the identifier", func(t *testing.T) {
		c := NewInputConfiguration("eks", StdInputPrefix, "30m")
		id := c.DestinationIdentifier()

		assert.Equal(t, id, c.S3ObjectName())
		assert.Equal(t, id, c.CloudWatchStreamName())
		assert.Equal(t, id, c.KinesisStreamName())
		assert.Equal(t, id, c.FirehoseStreamName())
	})
}

func TestValidationPrefix(t *testing.T) {
	c := NewInputConfiguration("ecs", StdInputPrefix, "10m")

	t.Run("cloudwatch validates against the log stream", func(t *testing.T) {
		assert.Equal(t, "ecs-std-10m", c.ValidationPrefix(config.PluginCloudWatch))
	})

	t.Run("s3 style plugins validate under the bucket prefix", func(t *testing.T) {
		assert.Equal(t, "kinesis-test/ecs-std-10m", c.ValidationPrefix(config.PluginKinesis))
		assert.Equal(t, "s3-test/ecs-std-10m", c.ValidationPrefix(config.PluginS3))
	})
}

func TestThroughputMB(t *testing.T) {
	n, err := ThroughputMB("20m")
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	_, err = ThroughputMB("twenty")
	assert.Error(t, err)
}

func TestTotalInputRecords(t *testing.T) {
	t.Run("scales the tag by rate and run time", func(t *testing.T) {
		n, err := TotalInputRecords("10m")
		require.NoError(t, err)
		assert.Equal(t, 6_000_000, n)
	})

	t.Run("rejects malformed tags", func(t *testing.T) {
		_, err := TotalInputRecords("m")
		assert.Error(t, err)

		_, err = TotalInputRecords("ten-m")
		assert.Error(t, err)
	})
}

func TestInputLoggers(t *testing.T) {
	cfg := &config.Config{
		AssetsDir:      "./load_tests",
		ECSAppImage:    "app:latest",
		ECSAppImageTCP: "app-tcp:latest",
	}

	loggers := InputLoggers(cfg)
	require.Len(t, loggers, 2)

	assert.Equal(t, LoggerStdstream, loggers[0].Name)
	assert.Equal(t, "app:latest", loggers[0].Image)
	assert.Equal(t, "load_tests/logger/stdout_logger/fluent.conf", loggers[0].FluentConfigPath)
	assert.Equal(t, StdInputPrefix, loggers[0].ValidatedInputPrefix())

	assert.Equal(t, LoggerTCP, loggers[1].Name)
	assert.Equal(t, "app-tcp:latest", loggers[1].Image)
	assert.Equal(t, CustomInputPrefix, loggers[1].ValidatedInputPrefix())
}

func TestRenderTemplate(t *testing.T) {
	out := RenderTemplate("a=$A b=$B a2=$A", map[string]string{"$A": "1", "$B": "2"})
	assert.Equal(t, "a=1 b=2 a2=1", out)
}
