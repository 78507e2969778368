// Package config loads the load test driver's settings from the environment.
package config

import (
	"fmt"
	"time"
)

// Platforms the driver can run tests on.
const (
	PlatformECS = "ecs"
	PlatformEKS = "eks"
)

// Output plugins under test.
const (
	PluginCloudWatch = "cloudwatch"
	PluginS3         = "s3"
	PluginKinesis    = "kinesis"
	PluginFirehose   = "firehose"
)

// Timing shared across the test suites. CloudWatch deliveries settle far
// slower than the other destinations, hence the larger buffer.
const (
	LoggerRunTime            = 10 * time.Minute
	DeliveryBuffer           = 10 * time.Minute
	CloudWatchDeliveryBuffer = 40 * time.Minute
)

// Config holds every setting the driver reads. Values come from the
// environment via LoadFromEnv.
type Config struct {
	Platform     string `yaml:"platform"`
	OutputPlugin string `yaml:"output_plugin"`
	Region       string `yaml:"region"`

	Prefix       string `yaml:"prefix"`
	StackName    string `yaml:"testing_resources_stack_name"`
	LogGroupName string `yaml:"cw_log_group_name"`
	S3BucketName string `yaml:"s3_bucket_name"`

	ECSClusterName string `yaml:"ecs_cluster_name"`
	EKSClusterName string `yaml:"eks_cluster_name"`

	// Throughput tags under test, e.g. ["10m", "20m", "30m"].
	Throughputs []string `yaml:"throughput_list"`

	FluentBitImage string `yaml:"fluent_bit_image"`
	ECSAppImage    string `yaml:"ecs_app_image"`
	ECSAppImageTCP string `yaml:"ecs_app_image_tcp"`
	EKSAppImage    string `yaml:"eks_app_image"`

	TaskRoleARN          string `yaml:"task_role_arn"`
	TaskExecutionRoleARN string `yaml:"task_execution_role_arn"`
	CFNRoleARN           string `yaml:"cfn_role_arn"`

	AssetsDir        string `yaml:"assets_dir"`
	ValidatorCommand string `yaml:"validator_command"`

	PushgatewayURL string `yaml:"pushgateway_url"`
	ArchiveResults bool   `yaml:"archive_results"`

	// Quality bar, in whole percent. Loss defaults to 0 (any missing
	// record fails the run), duplication to 100 (reported only).
	LossBarPercent        int `yaml:"log_loss_bar_percent"`
	DuplicationBarPercent int `yaml:"log_duplication_bar_percent"`
}

// Validate checks the settings every mode depends on. Cluster names are
// required only on the platform that uses them.
func (c *Config) Validate() error {
	switch c.Platform {
	case PlatformECS, PlatformEKS:
	default:
		return fmt.Errorf("config: unknown platform %q", c.Platform)
	}
	switch c.OutputPlugin {
	case PluginCloudWatch, PluginS3, PluginKinesis, PluginFirehose:
	default:
		return fmt.Errorf("config: unknown output plugin %q", c.OutputPlugin)
	}
	if c.Region == "" {
		return fmt.Errorf("config: AWS_REGION is required")
	}
	if c.Prefix == "" {
		return fmt.Errorf("config: PREFIX is required")
	}
	if c.StackName == "" {
		return fmt.Errorf("config: TESTING_RESOURCES_STACK_NAME is required")
	}
	if c.Platform == PlatformECS && c.ECSClusterName == "" {
		return fmt.Errorf("config: ECS_CLUSTER_NAME is required on ecs")
	}
	if c.Platform == PlatformEKS && c.EKSClusterName == "" {
		return fmt.Errorf("config: EKS_CLUSTER_NAME is required on eks")
	}
	if c.LossBarPercent < 0 || c.LossBarPercent > 100 {
		return fmt.Errorf("config: loss bar %d out of range", c.LossBarPercent)
	}
	if c.DuplicationBarPercent < 0 || c.DuplicationBarPercent > 100 {
		return fmt.Errorf("config: duplication bar %d out of range", c.DuplicationBarPercent)
	}
	return nil
}

// Buffer returns how long to wait after the loggers stop before the
// destination is read.
func (c *Config) Buffer() time.Duration {
	if c.OutputPlugin == PluginCloudWatch {
		return CloudWatchDeliveryBuffer
	}
	return DeliveryBuffer
}
