package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	firehosetypes "github.com/aws/aws-sdk-go-v2/service/firehose/types"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	kinesistypes "github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/resources"
	"go.uber.org/zap"
)

// KinesisAPI is the slice of the Kinesis API preflight needs.
type KinesisAPI interface {
	DescribeStreamSummary(ctx context.Context, params *kinesis.DescribeStreamSummaryInput, optFns ...func(*kinesis.Options)) (*kinesis.DescribeStreamSummaryOutput, error)
}

// FirehoseAPI is the slice of the Firehose API preflight needs.
type FirehoseAPI interface {
	DescribeDeliveryStream(ctx context.Context, params *firehose.DescribeDeliveryStreamInput, optFns ...func(*firehose.Options)) (*firehose.DescribeDeliveryStreamOutput, error)
}

// LogGroupsAPI is the slice of the CloudWatch Logs API preflight needs.
type LogGroupsAPI interface {
	DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
}

// BucketHeadAPI is the slice of the S3 API preflight needs.
type BucketHeadAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Preflight verifies the output destinations exist and are ready before
// any load is generated, so a half-provisioned stack fails the run in
// seconds instead of after a ten minute test.
type Preflight struct {
	Kinesis  KinesisAPI
	Firehose FirehoseAPI
	Logs     LogGroupsAPI
	S3       BucketHeadAPI

	logger *zap.Logger
}

// NewPreflight builds the destination checker from the client bundle.
func NewPreflight(c *Clients) *Preflight {
	return &Preflight{
		Kinesis:  c.Kinesis,
		Firehose: c.Firehose,
		Logs:     c.Logs,
		S3:       c.S3,
		logger:   c.logger,
	}
}

// Check verifies every destination the configured plugin will write to.
func (p *Preflight) Check(ctx context.Context, cfg *config.Config) error {
	switch cfg.OutputPlugin {
	case config.PluginCloudWatch:
		return p.checkLogGroup(ctx, cfg.LogGroupName)
	case config.PluginS3:
		return p.checkBucket(ctx, cfg.S3BucketName)
	case config.PluginKinesis:
		if err := p.checkBucket(ctx, cfg.S3BucketName); err != nil {
			return err
		}
		return p.forEachDestination(cfg, func(c resources.InputConfiguration) error {
			return p.checkKinesisStream(ctx, c.KinesisStreamName())
		})
	case config.PluginFirehose:
		if err := p.checkBucket(ctx, cfg.S3BucketName); err != nil {
			return err
		}
		return p.forEachDestination(cfg, func(c resources.InputConfiguration) error {
			return p.checkFirehoseStream(ctx, c.FirehoseStreamName())
		})
	default:
		return fmt.Errorf("preflight: unknown output plugin %q", cfg.OutputPlugin)
	}
}

// forEachDestination visits the std and custom destination of every
// throughput level.
func (p *Preflight) forEachDestination(cfg *config.Config, visit func(resources.InputConfiguration) error) error {
	for _, throughput := range cfg.Throughputs {
		for _, prefix := range []string{resources.StdInputPrefix, resources.CustomInputPrefix} {
			if err := visit(resources.NewInputConfiguration(cfg.Platform, prefix, throughput)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Preflight) checkBucket(ctx context.Context, bucket string) error {
	if _, err := p.S3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return fmt.Errorf("preflight: bucket %s: %w", bucket, err)
	}
	p.logger.Info("destination bucket ready", zap.String("bucket", bucket))
	return nil
}

func (p *Preflight) checkLogGroup(ctx context.Context, group string) error {
	out, err := p.Logs.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(group),
	})
	if err != nil {
		return fmt.Errorf("preflight: log group %s: %w", group, err)
	}
	for _, g := range out.LogGroups {
		if aws.ToString(g.LogGroupName) == group {
			p.logger.Info("destination log group ready", zap.String("log_group", group))
			return nil
		}
	}
	return fmt.Errorf("preflight: log group %s not found", group)
}

func (p *Preflight) checkKinesisStream(ctx context.Context, name string) error {
	out, err := p.Kinesis.DescribeStreamSummary(ctx, &kinesis.DescribeStreamSummaryInput{
		StreamName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("preflight: kinesis stream %s: %w", name, err)
	}
	status := out.StreamDescriptionSummary.StreamStatus
	if status != kinesistypes.StreamStatusActive {
		return fmt.Errorf("preflight: kinesis stream %s is %s, want ACTIVE", name, status)
	}
	p.logger.Info("destination stream ready", zap.String("stream", name))
	return nil
}

func (p *Preflight) checkFirehoseStream(ctx context.Context, name string) error {
	out, err := p.Firehose.DescribeDeliveryStream(ctx, &firehose.DescribeDeliveryStreamInput{
		DeliveryStreamName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("preflight: delivery stream %s: %w", name, err)
	}
	status := out.DeliveryStreamDescription.DeliveryStreamStatus
	if status != firehosetypes.DeliveryStreamStatusActive {
		return fmt.Errorf("preflight: delivery stream %s is %s, want ACTIVE", name, status)
	}
	p.logger.Info("destination delivery stream ready", zap.String("stream", name))
	return nil
}
