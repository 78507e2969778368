package resources

import (
	"path/filepath"

	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
)

// Input logger names.
const (
	LoggerStdstream = "stdstream"
	LoggerTCP       = "tcp"
)

// InputLogger describes one load generating container type and where its
// Fluent Bit configuration lives on disk.
type InputLogger struct {
	Name  string
	Image string

	// FluentConfigPath is the extra Fluent Bit config uploaded to S3 for
	// the firelens container to pull.
	FluentConfigPath string

	// LogConfigurationDir holds one firelens logConfiguration JSON
	// fragment per output plugin.
	LogConfigurationDir string
}

// InputLoggers lists the load generators an ECS run exercises: a stdout
// writer and a TCP writer, in that order.
func InputLoggers(cfg *config.Config) []InputLogger {
	return []InputLogger{
		{
			Name:                LoggerStdstream,
			Image:               cfg.ECSAppImage,
			FluentConfigPath:    filepath.Join(cfg.AssetsDir, "logger", "stdout_logger", "fluent.conf"),
			LogConfigurationDir: filepath.Join(cfg.AssetsDir, "logger", "stdout_logger", "log_configuration"),
		},
		{
			Name:                LoggerTCP,
			Image:               cfg.ECSAppImageTCP,
			FluentConfigPath:    filepath.Join(cfg.AssetsDir, "logger", "tcp_logger", "fluent.conf"),
			LogConfigurationDir: filepath.Join(cfg.AssetsDir, "logger", "tcp_logger", "log_configuration"),
		},
	}
}

// ValidatedInputPrefix is the input prefix whose destination a logger's
// records are validated under. Only stdstream logs validate under the std
// route; every other logger feeds the custom input.
func (l InputLogger) ValidatedInputPrefix() string {
	if l.Name == LoggerStdstream {
		return StdInputPrefix
	}
	return CustomInputPrefix
}
