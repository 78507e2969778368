package ecs

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/resources"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/taskdef"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/validation"
)

// ConfigPublisher uploads a fluent-bit config file and returns its S3 ARN.
type ConfigPublisher interface {
	PublishFluentConfig(ctx context.Context, localPath, key string) (string, error)
}

// CaseRunner executes the external validator for one test case.
type CaseRunner interface {
	Run(ctx context.Context, c *validation.Case) error
}

// Suite drives the full ECS test matrix: every input logger crossed with
// every throughput level, one task each.
type Suite struct {
	cfg      *config.Config
	api      TasksAPI
	taskdefs *taskdef.Generator
	configs  ConfigPublisher
	runner   CaseRunner
	waiter   *TaskWaiter
	logger   *zap.Logger

	sleep func(time.Duration)
	now   func() time.Time
}

// NewSuite wires a suite from already constructed collaborators.
func NewSuite(cfg *config.Config, api TasksAPI, taskdefs *taskdef.Generator, configs ConfigPublisher, runner CaseRunner, logger *zap.Logger) *Suite {
	return &Suite{
		cfg:      cfg,
		api:      api,
		taskdefs: taskdefs,
		configs:  configs,
		runner:   runner,
		waiter:   NewTaskWaiter(api, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes the matrix and returns one validated case per cell. Every
// task is launched before the single run time sleep, so all cells generate
// load concurrently the way the destinations see it in production. An error
// aborts the whole run; errors carrying the [TEST_FAILURE] marker mean the
// workload itself misbehaved rather than the harness.
func (s *Suite) Run(ctx context.Context) ([]*validation.Case, error) {
	inputs := resources.InputLoggers(s.cfg)

	taskARNs := make(map[string]string, len(inputs)*len(s.cfg.Throughputs))
	for _, input := range inputs {
		key := fmt.Sprintf("%s-test/%s/fluent-%s.conf", s.cfg.OutputPlugin, s.cfg.Platform, input.Name)
		fluentConfigARN, err := s.configs.PublishFluentConfig(ctx, input.FluentConfigPath, key)
		if err != nil {
			return nil, err
		}

		for _, throughput := range s.cfg.Throughputs {
			taskARN, err := s.launchTask(ctx, input, throughput, fluentConfigARN)
			if err != nil {
				return nil, err
			}
			taskARNs[input.Name+"/"+throughput] = taskARN
		}

		s.logger.Info("load test in progress",
			zap.String("source", input.Name),
			zap.String("plugin", s.cfg.OutputPlugin))
	}

	s.pause(ctx, config.LoggerRunTime, "letting loggers run")

	var cases []*validation.Case
	for _, input := range inputs {
		var loggerCases []*validation.Case
		for _, throughput := range s.cfg.Throughputs {
			c, err := s.collectCase(ctx, input, throughput, taskARNs[input.Name+"/"+throughput])
			if err != nil {
				return nil, err
			}
			loggerCases = append(loggerCases, c)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, c := range loggerCases {
			g.Go(func() error {
				return s.runner.Run(gctx, c)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		cases = append(cases, loggerCases...)
	}
	return cases, nil
}

func (s *Suite) launchTask(ctx context.Context, input resources.InputLogger, throughput, fluentConfigARN string) (string, error) {
	rendered, err := s.taskdefs.Render(input, throughput, fluentConfigARN)
	if err != nil {
		return "", err
	}
	if err := s.taskdefs.Register(ctx, rendered); err != nil {
		return "", err
	}

	family := s.taskdefs.Family(input, throughput)
	out, err := s.api.RunTask(ctx, &awsecs.RunTaskInput{
		Cluster:        aws.String(s.cfg.ECSClusterName),
		LaunchType:     ecstypes.LaunchTypeEc2,
		TaskDefinition: aws.String(family),
	})
	if err != nil {
		return "", fmt.Errorf("run task %s: %w", family, err)
	}
	if len(out.Tasks) == 0 {
		reason := "no failure reason reported"
		if len(out.Failures) > 0 {
			reason = aws.ToString(out.Failures[0].Reason)
		}
		return "", fmt.Errorf("run task %s: no task started: %s", family, reason)
	}

	taskARN := aws.ToString(out.Tasks[0].TaskArn)
	s.logger.Info("task started",
		zap.String("family", family),
		zap.String("task_arn", taskARN),
		zap.String("throughput", throughput))
	return taskARN, nil
}

// collectCase waits out one task and assembles its validation case. Tasks
// ECS reaped before we could describe them are validated anyway, with the
// log delay marked unavailable.
func (s *Suite) collectCase(ctx context.Context, input resources.InputLogger, throughput, taskARN string) (*validation.Case, error) {
	records, err := resources.TotalInputRecords(throughput)
	if err != nil {
		return nil, err
	}
	inputConfig := resources.NewInputConfiguration(s.cfg.Platform, input.ValidatedInputPrefix(), throughput)
	c := &validation.Case{
		LoggerName:   input.Name,
		LoggerImage:  input.Image,
		Throughput:   throughput,
		InputRecords: records,
		LogDelay:     validation.DelayUnavailable,
		Prefix:       inputConfig.ValidationPrefix(s.cfg.OutputPlugin),
	}

	if err := s.waiter.Wait(ctx, s.cfg.ECSClusterName, taskARN); err != nil {
		return nil, err
	}

	out, err := s.api.DescribeTasks(ctx, &awsecs.DescribeTasksInput{
		Cluster: aws.String(s.cfg.ECSClusterName),
		Tasks:   []string{taskARN},
	})
	if err != nil {
		return nil, fmt.Errorf("describe task %s: %w", taskARN, err)
	}
	if len(out.Failures) > 0 {
		s.logger.Warn("task gone before describe, log delay unavailable",
			zap.String("task_arn", taskARN),
			zap.String("reason", aws.ToString(out.Failures[0].Reason)))
		return c, nil
	}
	if len(out.Tasks) == 0 {
		s.logger.Warn("task missing from describe, log delay unavailable",
			zap.String("task_arn", taskARN))
		return c, nil
	}

	task := out.Tasks[0]
	if err := checkAppExit(task); err != nil {
		return nil, err
	}
	if task.StartedAt == nil || task.StoppedAt == nil {
		s.logger.Warn("task timestamps missing, log delay unavailable", zap.String("task_arn", taskARN))
		return c, nil
	}

	c.LogDelay = validation.FormatDelay(task.StoppedAt.Sub(*task.StartedAt) - config.LoggerRunTime)
	s.bufferWait(ctx, *task.StoppedAt)
	return c, nil
}

// checkAppExit verifies the app container generated all of its logs. A
// nonzero exit means the logger quit early, which would skew loss numbers.
func checkAppExit(task ecstypes.Task) error {
	if len(task.Containers) < 2 {
		return fmt.Errorf("[TEST_FAILURE] task %s reported %d containers, expected the app and the log router",
			aws.ToString(task.TaskArn), len(task.Containers))
	}
	for _, container := range task.Containers {
		if aws.ToString(container.Name) != "app" {
			continue
		}
		if container.ExitCode == nil {
			return fmt.Errorf("[TEST_FAILURE] app container in task %s has no exit code", aws.ToString(task.TaskArn))
		}
		if code := *container.ExitCode; code != 0 {
			return fmt.Errorf("[TEST_FAILURE] app container in task %s exited with code %d, not all logs were sent",
				aws.ToString(task.TaskArn), code)
		}
	}
	return nil
}

// bufferWait sleeps out whatever remains of the destination delivery buffer
// since the task stopped, so the validator sees fully delivered logs.
func (s *Suite) bufferWait(ctx context.Context, stoppedAt time.Time) {
	elapsed := s.now().Sub(stoppedAt)
	if remaining := s.cfg.Buffer() - elapsed; remaining > 0 {
		s.pause(ctx, remaining, "waiting out the delivery buffer")
	}
}

func (s *Suite) pause(ctx context.Context, d time.Duration, reason string) {
	s.logger.Info("sleeping", zap.Duration("duration", d), zap.String("reason", reason))
	if s.sleep != nil {
		s.sleep(d)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
