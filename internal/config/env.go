package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Default locations for the on-disk test assets and the validator entry
// point, relative to the repository root the driver runs from.
const (
	DefaultAssetsDir        = "./load_tests"
	DefaultValidatorCommand = "go run ./load_tests/validation/validate.go"
)

// LoadFromEnv builds a Config from the process environment.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Platform:     strings.ToLower(os.Getenv("PLATFORM")),
		OutputPlugin: strings.ToLower(os.Getenv("OUTPUT_PLUGIN")),
		Region:       os.Getenv("AWS_REGION"),

		Prefix:       os.Getenv("PREFIX"),
		StackName:    os.Getenv("TESTING_RESOURCES_STACK_NAME"),
		LogGroupName: GetEnvOrDefault("CW_LOG_GROUP_NAME", "unavailable"),
		S3BucketName: GetEnvOrDefault("S3_BUCKET_NAME", "unavailable"),

		ECSClusterName: os.Getenv("ECS_CLUSTER_NAME"),
		EKSClusterName: os.Getenv("EKS_CLUSTER_NAME"),

		FluentBitImage: os.Getenv("FLUENT_BIT_IMAGE"),
		ECSAppImage:    os.Getenv("ECS_APP_IMAGE"),
		ECSAppImageTCP: os.Getenv("ECS_APP_IMAGE_TCP"),
		EKSAppImage:    os.Getenv("EKS_APP_IMAGE"),

		TaskRoleARN:          os.Getenv("LOAD_TEST_TASK_ROLE_ARN"),
		TaskExecutionRoleARN: os.Getenv("LOAD_TEST_TASK_EXECUTION_ROLE_ARN"),
		CFNRoleARN:           os.Getenv("LOAD_TEST_CFN_ROLE_ARN"),

		AssetsDir:        GetEnvOrDefault("LOAD_TEST_ASSETS_DIR", DefaultAssetsDir),
		ValidatorCommand: GetEnvOrDefault("VALIDATOR_COMMAND", DefaultValidatorCommand),

		PushgatewayURL: os.Getenv("METRICS_PUSHGATEWAY_URL"),
		ArchiveResults: getEnvBool("RESULTS_ARCHIVE"),
	}

	// CloudWatch runs on its own throughput schedule.
	listVar := "THROUGHPUT_LIST"
	if cfg.OutputPlugin == PluginCloudWatch {
		listVar = "CW_THROUGHPUT_LIST"
	}
	if raw := os.Getenv(listVar); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Throughputs); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", listVar, err)
		}
	}

	var err error
	if cfg.LossBarPercent, err = getEnvPercent("LOG_LOSS_BAR_PERCENT", 0); err != nil {
		return nil, err
	}
	if cfg.DuplicationBarPercent, err = getEnvPercent("LOG_DUPLICATION_BAR_PERCENT", 100); err != nil {
		return nil, err
	}

	return cfg, nil
}

// GetEnvOrDefault returns the environment variable or a default value.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func getEnvPercent(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return v, nil
}
