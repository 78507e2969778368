// Package ecs runs the ECS half of the load test suite: one task per input
// logger and throughput level, followed by validation of every destination.
package ecs

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TasksAPI is the slice of the ECS API the suite needs.
type TasksAPI interface {
	RunTask(ctx context.Context, params *awsecs.RunTaskInput, optFns ...func(*awsecs.Options)) (*awsecs.RunTaskOutput, error)
	DescribeTasks(ctx context.Context, params *awsecs.DescribeTasksInput, optFns ...func(*awsecs.Options)) (*awsecs.DescribeTasksOutput, error)
}

// Polling profile for task completion. Describe calls occasionally fail for
// tasks ECS already reaped; a couple of those in a row means the task is
// gone and validation should proceed without it.
const (
	waiterInterval            = 30 * time.Second
	maxWaiterAttempts         = 240
	maxWaiterDescribeFailures = 2
)

// TaskWaiter polls one task until it stops, is reaped, or the attempt
// budget runs out. None of those outcomes is an error; the suite describes
// the task once more afterwards and decides what it means.
type TaskWaiter struct {
	api    TasksAPI
	logger *zap.Logger

	interval    time.Duration
	maxAttempts int
	maxFailures int
}

// NewTaskWaiter builds a waiter with the production polling profile.
func NewTaskWaiter(api TasksAPI, logger *zap.Logger) *TaskWaiter {
	return &TaskWaiter{
		api:         api,
		logger:      logger,
		interval:    waiterInterval,
		maxAttempts: maxWaiterAttempts,
		maxFailures: maxWaiterDescribeFailures,
	}
}

// Wait blocks until the task reaches a terminal state or the waiter gives
// up. Only transport errors are returned.
func (w *TaskWaiter) Wait(ctx context.Context, cluster, taskARN string) error {
	w.logger.Info("waiting on task", zap.String("task_arn", taskARN))

	limiter := rate.NewLimiter(rate.Every(w.interval), 1)
	failures := 0
	for attempts := 0; attempts < w.maxAttempts; attempts++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for task %s: %w", taskARN, err)
		}

		out, err := w.api.DescribeTasks(ctx, &awsecs.DescribeTasksInput{
			Cluster: aws.String(cluster),
			Tasks:   []string{taskARN},
		})
		if err != nil {
			return fmt.Errorf("describe task %s: %w", taskARN, err)
		}

		if len(out.Failures) > 0 || len(out.Tasks) == 0 {
			failures++
			reason := "task missing from response"
			if len(out.Failures) > 0 {
				reason = aws.ToString(out.Failures[0].Reason)
			}
			w.logger.Warn("describe task failure",
				zap.String("task_arn", taskARN),
				zap.String("reason", reason),
				zap.Int("failures", failures))
			if failures >= w.maxFailures {
				return nil
			}
			continue
		}

		status := aws.ToString(out.Tasks[0].LastStatus)
		w.logger.Info("task status", zap.String("task_arn", taskARN), zap.String("status", status))
		if status == "STOPPED" || status == "DELETED" {
			return nil
		}
	}

	w.logger.Warn("task waiter gave up", zap.String("task_arn", taskARN), zap.Int("attempts", w.maxAttempts))
	return nil
}
