package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/smithy-go"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
	"go.uber.org/zap"
)

// Test data expires after a few days so failed runs can still be validated
// by hand before the log group drains.
const logRetentionDays = 5

// RetentionAPI is the slice of the CloudWatch Logs API teardown needs.
type RetentionAPI interface {
	PutRetentionPolicy(ctx context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
}

// BucketEmptier removes every object from the test bucket.
type BucketEmptier interface {
	Empty(ctx context.Context) error
}

// Teardown removes the testing resources and expires the data a run left
// behind.
type Teardown struct {
	Provisioner *Provisioner
	Logs        RetentionAPI
	Bucket      BucketEmptier

	logger *zap.Logger
}

// NewTeardown assembles the teardown steps.
func NewTeardown(provisioner *Provisioner, logs RetentionAPI, bucket BucketEmptier, logger *zap.Logger) *Teardown {
	return &Teardown{Provisioner: provisioner, Logs: logs, Bucket: bucket, logger: logger}
}

// Run expires the log data, empties the bucket, and deletes the stack. A
// retention failure is logged and skipped; the stack delete still matters
// more than the expiry policy.
func (t *Teardown) Run(ctx context.Context, cfg *config.Config) error {
	if _, err := t.Logs.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(cfg.LogGroupName),
		RetentionInDays: aws.Int32(logRetentionDays),
	}); err != nil {
		var apiErr smithy.APIError
		code := ""
		if errors.As(err, &apiErr) {
			code = apiErr.ErrorCode()
		}
		t.logger.Warn("set log retention policy",
			zap.String("log_group", cfg.LogGroupName),
			zap.String("api_error", code),
			zap.Error(err))
	} else {
		t.logger.Info("log retention policy set",
			zap.String("log_group", cfg.LogGroupName),
			zap.Int("retention_days", logRetentionDays))
	}

	if err := t.Bucket.Empty(ctx); err != nil {
		return fmt.Errorf("empty test bucket: %w", err)
	}
	return t.Provisioner.DeleteStack(ctx, cfg.StackName)
}
