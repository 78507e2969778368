package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubRetention struct {
	input *cloudwatchlogs.PutRetentionPolicyInput
	err   error
}

func (s *stubRetention) PutRetentionPolicy(_ context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	s.input = params
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, s.err
}

type stubEmptier struct {
	called bool
	err    error
}

func (s *stubEmptier) Empty(context.Context) error {
	s.called = true
	return s.err
}

func teardownConfig() *config.Config {
	return &config.Config{
		LogGroupName: "load-test-group",
		StackName:    "load-test-resources",
	}
}

func TestTeardownRun(t *testing.T) {
	t.Run("expires data and deletes the stack", func(t *testing.T) {
		cfn := &stubCFN{status: cfntypes.StackStatusCreateComplete}
		retention := &stubRetention{}
		bucket := &stubEmptier{}
		td := NewTeardown(NewProvisioner(cfn, zap.NewNop()), retention, bucket, zap.NewNop())

		require.NoError(t, td.Run(context.Background(), teardownConfig()))

		require.NotNil(t, retention.input)
		assert.Equal(t, "load-test-group", aws.ToString(retention.input.LogGroupName))
		assert.Equal(t, int32(5), aws.ToInt32(retention.input.RetentionInDays))
		assert.True(t, bucket.called)
		assert.Equal(t, []string{"load-test-resources"}, cfn.deleted)
	})

	t.Run("retention failure does not stop the teardown", func(t *testing.T) {
		cfn := &stubCFN{}
		retention := &stubRetention{err: errors.New("access denied")}
		bucket := &stubEmptier{}
		td := NewTeardown(NewProvisioner(cfn, zap.NewNop()), retention, bucket, zap.NewNop())

		require.NoError(t, td.Run(context.Background(), teardownConfig()))
		assert.True(t, bucket.called)
		assert.Len(t, cfn.deleted, 1)
	})

	t.Run("bucket failure aborts before the stack delete", func(t *testing.T) {
		cfn := &stubCFN{}
		bucket := &stubEmptier{err: errors.New("list denied")}
		td := NewTeardown(NewProvisioner(cfn, zap.NewNop()), &stubRetention{}, bucket, zap.NewNop())

		require.Error(t, td.Run(context.Background(), teardownConfig()))
		assert.Empty(t, cfn.deleted)
	})
}
