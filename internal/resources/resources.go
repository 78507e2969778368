// Package resources derives destination resource names for load test cases.
//
// Every test case routes logs from one input logger at one throughput level
// to one destination resource. The destination identifier ties the three
// together so the validator can find exactly the records one case produced.
package resources

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
)

// Input prefixes distinguish the two log routes a task carries. Logs read
// from stdout validate under the std prefix, logs arriving over the TCP
// input under the bare throughput.
const (
	StdInputPrefix    = "std-"
	CustomInputPrefix = ""
)

// InputConfiguration identifies one test case's log route.
type InputConfiguration struct {
	Platform    string
	InputPrefix string
	Throughput  string
}

// NewInputConfiguration builds the route identity for one test case.
func NewInputConfiguration(platform, inputPrefix, throughput string) InputConfiguration {
	return InputConfiguration{
		Platform:    platform,
		InputPrefix: inputPrefix,
		Throughput:  throughput,
	}
}

// DestinationIdentifier is the base name for every destination resource of
// this case, e.g. "ecs-std-10m".
func (c InputConfiguration) DestinationIdentifier() string {
	return fmt.Sprintf("%s-%s%s", c.Platform, c.InputPrefix, c.Throughput)
}

// S3ObjectName names the object the S3 output writes for this case.
func (c InputConfiguration) S3ObjectName() string {
	return c.DestinationIdentifier()
}

// CloudWatchStreamName names the log stream the CloudWatch output writes to.
func (c InputConfiguration) CloudWatchStreamName() string {
	return c.DestinationIdentifier()
}

// KinesisStreamName names the Kinesis stream this case publishes to.
func (c InputConfiguration) KinesisStreamName() string {
	return c.DestinationIdentifier()
}

// FirehoseStreamName names the Firehose delivery stream for this case.
func (c InputConfiguration) FirehoseStreamName() string {
	return c.DestinationIdentifier()
}

// CloudWatchPrefix is the prefix the validator scans when the destination
// is CloudWatch Logs.
func (c InputConfiguration) CloudWatchPrefix() string {
	return c.DestinationIdentifier()
}

// S3Prefix is the prefix the validator scans when the destination is an S3
// style plugin (s3, kinesis, firehose all land in the test bucket).
func (c InputConfiguration) S3Prefix(plugin string) string {
	return fmt.Sprintf("%s-test/%s", plugin, c.DestinationIdentifier())
}

// ValidationPrefix picks the destination prefix the validator needs for the
// given output plugin.
func (c InputConfiguration) ValidationPrefix(plugin string) string {
	if plugin == config.PluginCloudWatch {
		return c.CloudWatchPrefix()
	}
	return c.S3Prefix(plugin)
}

// TotalInputRecords is the number of records one case emits: the throughput
// tag ("10m" means 10k records/s per MB) held for the logger run time.
func TotalInputRecords(throughput string) (int, error) {
	if len(throughput) < 2 {
		return 0, fmt.Errorf("resources: malformed throughput tag %q", throughput)
	}
	rate, err := strconv.Atoi(throughput[:len(throughput)-1])
	if err != nil {
		return 0, fmt.Errorf("resources: malformed throughput tag %q: %w", throughput, err)
	}
	return rate * 1000 * int(config.LoggerRunTime.Seconds()), nil
}

// ThroughputMB extracts the numeric MB/s value from a throughput tag.
func ThroughputMB(throughput string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSuffix(throughput, "m"))
	if err != nil {
		return 0, fmt.Errorf("resources: malformed throughput tag %q: %w", throughput, err)
	}
	return v, nil
}
