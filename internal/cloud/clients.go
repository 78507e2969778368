// Package cloud builds the AWS clients the driver talks to and the bucket
// and destination helpers shared by the test suites.
package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"
)

// Session identity for the assumed infrastructure role.
const (
	roleSessionName = "load-test-cfn"
	roleSessionTTL  = time.Hour
)

// Clients bundles the AWS service clients the driver uses.
type Clients struct {
	ECS      *ecs.Client
	S3       *s3.Client
	Logs     *cloudwatchlogs.Client
	CFN      *cloudformation.Client
	Kinesis  *kinesis.Client
	Firehose *firehose.Client

	awsCfg aws.Config
	logger *zap.Logger
}

// NewClients loads the default AWS configuration for the region and builds
// one client per service.
func NewClients(ctx context.Context, region string, logger *zap.Logger) (*Clients, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newClients(awsCfg, logger), nil
}

func newClients(awsCfg aws.Config, logger *zap.Logger) *Clients {
	return &Clients{
		ECS:      ecs.NewFromConfig(awsCfg),
		S3:       s3.NewFromConfig(awsCfg),
		Logs:     cloudwatchlogs.NewFromConfig(awsCfg),
		CFN:      cloudformation.NewFromConfig(awsCfg),
		Kinesis:  kinesis.NewFromConfig(awsCfg),
		Firehose: firehose.NewFromConfig(awsCfg),
		awsCfg:   awsCfg,
		logger:   logger,
	}
}

// WithAssumedRole returns a client set backed by temporary credentials for
// the given role. Infrastructure calls run under the dedicated CFN role
// rather than the job role the rest of the run uses. An empty role keeps
// the ambient credentials.
func (c *Clients) WithAssumedRole(roleARN string) *Clients {
	if roleARN == "" {
		return c
	}
	provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(c.awsCfg), roleARN,
		func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = roleSessionName
			o.Duration = roleSessionTTL
		})

	cfg := c.awsCfg.Copy()
	cfg.Credentials = aws.NewCredentialsCache(provider)
	c.logger.Info("assuming infrastructure role", zap.String("role_arn", roleARN))
	return newClients(cfg, c.logger)
}
