package ecs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubTasksAPI struct {
	mu          sync.Mutex
	runInputs   []*awsecs.RunTaskInput
	runErr      error
	runEmpty    bool
	nextTask    int
	describeIn  []*awsecs.DescribeTasksInput
	describeErr error
	queues      map[string][]*awsecs.DescribeTasksOutput
	queueIndex  map[string]int
}

func (s *stubTasksAPI) RunTask(_ context.Context, params *awsecs.RunTaskInput, _ ...func(*awsecs.Options)) (*awsecs.RunTaskOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runInputs = append(s.runInputs, params)
	if s.runErr != nil {
		return nil, s.runErr
	}
	if s.runEmpty {
		return &awsecs.RunTaskOutput{
			Failures: []ecstypes.Failure{{Reason: aws.String("RESOURCE:MEMORY")}},
		}, nil
	}
	s.nextTask++
	arn := fmt.Sprintf("arn:aws:ecs:us-west-2:123456789012:task/%d", s.nextTask)
	return &awsecs.RunTaskOutput{Tasks: []ecstypes.Task{{TaskArn: aws.String(arn)}}}, nil
}

// DescribeTasks replays the queue configured for the requested task ARN,
// repeating the final response once the queue runs out.
func (s *stubTasksAPI) DescribeTasks(_ context.Context, params *awsecs.DescribeTasksInput, _ ...func(*awsecs.Options)) (*awsecs.DescribeTasksOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.describeIn = append(s.describeIn, params)
	if s.describeErr != nil {
		return nil, s.describeErr
	}

	arn := params.Tasks[0]
	queue := s.queues[arn]
	if len(queue) == 0 {
		return &awsecs.DescribeTasksOutput{
			Tasks: []ecstypes.Task{{TaskArn: aws.String(arn), LastStatus: aws.String("STOPPED")}},
		}, nil
	}
	if s.queueIndex == nil {
		s.queueIndex = map[string]int{}
	}
	i := s.queueIndex[arn]
	if i >= len(queue) {
		i = len(queue) - 1
	}
	s.queueIndex[arn] = i + 1
	return queue[i], nil
}

func runningOutput(arn string) *awsecs.DescribeTasksOutput {
	return &awsecs.DescribeTasksOutput{
		Tasks: []ecstypes.Task{{TaskArn: aws.String(arn), LastStatus: aws.String("RUNNING")}},
	}
}

func reapedOutput(arn string) *awsecs.DescribeTasksOutput {
	return &awsecs.DescribeTasksOutput{
		Failures: []ecstypes.Failure{{Arn: aws.String(arn), Reason: aws.String("MISSING")}},
	}
}

func stoppedOutput(arn string, started, stopped time.Time, appExit int32) *awsecs.DescribeTasksOutput {
	return &awsecs.DescribeTasksOutput{
		Tasks: []ecstypes.Task{{
			TaskArn:    aws.String(arn),
			LastStatus: aws.String("STOPPED"),
			StartedAt:  aws.Time(started),
			StoppedAt:  aws.Time(stopped),
			Containers: []ecstypes.Container{
				{Name: aws.String("app"), ExitCode: aws.Int32(appExit)},
				{Name: aws.String("log_router"), ExitCode: aws.Int32(0)},
			},
		}},
	}
}

func newTestWaiter(api TasksAPI) *TaskWaiter {
	w := NewTaskWaiter(api, zap.NewNop())
	w.interval = time.Millisecond
	return w
}

func TestTaskWaiter(t *testing.T) {
	const arn = "arn:aws:ecs:us-west-2:123456789012:task/1"

	t.Run("returns once the task stops", func(t *testing.T) {
		api := &stubTasksAPI{queues: map[string][]*awsecs.DescribeTasksOutput{
			arn: {runningOutput(arn), runningOutput(arn), stoppedOutput(arn, time.Now(), time.Now(), 0)},
		}}
		w := newTestWaiter(api)

		require.NoError(t, w.Wait(context.Background(), "lt-cluster", arn))
		require.Len(t, api.describeIn, 3)
		assert.Equal(t, "lt-cluster", aws.ToString(api.describeIn[0].Cluster))
		assert.Equal(t, []string{arn}, api.describeIn[0].Tasks)
	})

	t.Run("stops after repeated describe failures", func(t *testing.T) {
		api := &stubTasksAPI{queues: map[string][]*awsecs.DescribeTasksOutput{
			arn: {reapedOutput(arn)},
		}}
		w := newTestWaiter(api)

		require.NoError(t, w.Wait(context.Background(), "lt-cluster", arn))
		assert.Len(t, api.describeIn, 2)
	})

	t.Run("treats an empty response as a reaped task", func(t *testing.T) {
		api := &stubTasksAPI{queues: map[string][]*awsecs.DescribeTasksOutput{
			arn: {{}},
		}}
		w := newTestWaiter(api)

		require.NoError(t, w.Wait(context.Background(), "lt-cluster", arn))
		assert.Len(t, api.describeIn, 2)
	})

	t.Run("gives up at the attempt budget", func(t *testing.T) {
		api := &stubTasksAPI{queues: map[string][]*awsecs.DescribeTasksOutput{
			arn: {runningOutput(arn)},
		}}
		w := newTestWaiter(api)
		w.maxAttempts = 3

		require.NoError(t, w.Wait(context.Background(), "lt-cluster", arn))
		assert.Len(t, api.describeIn, 3)
	})

	t.Run("propagates transport errors", func(t *testing.T) {
		api := &stubTasksAPI{describeErr: errors.New("throttled")}
		w := newTestWaiter(api)

		err := w.Wait(context.Background(), "lt-cluster", arn)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "describe task")
	})
}
