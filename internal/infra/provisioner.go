// Package infra provisions and tears down the ephemeral testing resources
// stack. The stack definitions themselves live with the CDK code under the
// asset directory; this package only drives them.
package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"go.uber.org/zap"
)

// CFNAPI is the slice of the CloudFormation API this package needs.
type CFNAPI interface {
	cloudformation.DescribeStacksAPIClient
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
}

// Several CodeBuild projects share one stack; whichever runs first creates
// it and the rest wait here for it to appear and settle.
const (
	stackExistsWait = 5 * time.Minute
	stackCreateWait = 60 * time.Minute
)

// Provisioner waits on and deletes the testing resources stack.
type Provisioner struct {
	api    CFNAPI
	logger *zap.Logger
}

// NewProvisioner builds a Provisioner over an assumed-role client.
func NewProvisioner(api CFNAPI, logger *zap.Logger) *Provisioner {
	return &Provisioner{api: api, logger: logger}
}

// WaitForStack blocks until the stack exists and reports CREATE_COMPLETE.
func (p *Provisioner) WaitForStack(ctx context.Context, stackName string) error {
	in := &cloudformation.DescribeStacksInput{StackName: aws.String(stackName)}

	p.logger.Info("waiting for testing resources stack", zap.String("stack", stackName))
	if err := cloudformation.NewStackExistsWaiter(p.api).Wait(ctx, in, stackExistsWait); err != nil {
		return fmt.Errorf("wait for stack %s to exist: %w", stackName, err)
	}
	if err := cloudformation.NewStackCreateCompleteWaiter(p.api).Wait(ctx, in, stackCreateWait); err != nil {
		return fmt.Errorf("wait for stack %s to create: %w", stackName, err)
	}

	p.logger.Info("testing resources stack ready", zap.String("stack", stackName))
	return nil
}

// DeleteStack starts stack deletion. CloudFormation finishes asynchronously
// and removes every resource the stack owns.
func (p *Provisioner) DeleteStack(ctx context.Context, stackName string) error {
	if _, err := p.api.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(stackName),
	}); err != nil {
		return fmt.Errorf("delete stack %s: %w", stackName, err)
	}
	p.logger.Info("deleting testing resources stack", zap.String("stack", stackName))
	return nil
}
