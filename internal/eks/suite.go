package eks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/resources"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/validation"
)

// Daemonset runs cover the logger run time plus the delivery buffer; logs
// keep arriving for a while after the app containers finish.
const streamSettleTime = 1000 * time.Second

// The app containers of one daemonset land in per-node log streams under
// this name, via the node agent's tail of /var/log/containers.
const daemonSetSource = "daemonset"

// LogStreamsAPI is the slice of the CloudWatch Logs API the suite needs.
type LogStreamsAPI interface {
	DescribeLogStreams(ctx context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
}

// CaseRunner executes the external validator for one test case.
type CaseRunner interface {
	Run(ctx context.Context, c *validation.Case) error
}

// Suite drives the EKS test matrix: one daemonset per throughput level,
// one validation case per app log stream the daemonset produced.
type Suite struct {
	cfg    *config.Config
	sets   *DaemonSets
	logs   LogStreamsAPI
	runner CaseRunner
	logger *zap.Logger

	sleep func(time.Duration)
}

// NewSuite wires a suite from already constructed collaborators.
func NewSuite(cfg *config.Config, sets *DaemonSets, logs LogStreamsAPI, runner CaseRunner, logger *zap.Logger) *Suite {
	return &Suite{
		cfg:    cfg,
		sets:   sets,
		logs:   logs,
		runner: runner,
		logger: logger,
	}
}

// Run applies every daemonset, waits out the run, and validates each app
// log stream against the records its node should have produced.
func (s *Suite) Run(ctx context.Context) ([]*validation.Case, error) {
	for _, throughput := range s.cfg.Throughputs {
		manifest, err := s.sets.Render(throughput)
		if err != nil {
			return nil, err
		}
		if err := s.sets.Apply(ctx, manifest); err != nil {
			return nil, err
		}
	}

	s.pause(ctx, streamSettleTime, "letting daemonsets run and logs settle")

	var cases []*validation.Case
	for _, throughput := range s.cfg.Throughputs {
		throughputCases, err := s.collectCases(ctx, throughput)
		if err != nil {
			return nil, err
		}
		cases = append(cases, throughputCases...)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range cases {
		g.Go(func() error {
			return s.runner.Run(gctx, c)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cases, nil
}

// collectCases finds the app container streams one daemonset produced. The
// per-stream delay comes straight from CloudWatch's ingestion metadata.
func (s *Suite) collectCases(ctx context.Context, throughput string) ([]*validation.Case, error) {
	records, err := resources.TotalInputRecords(throughput)
	if err != nil {
		return nil, err
	}

	prefix := s.streamPrefix(throughput)
	out, err := s.logs.DescribeLogStreams(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName:        aws.String(s.cfg.LogGroupName),
		LogStreamNamePrefix: aws.String(prefix),
		OrderBy:             cwtypes.OrderByLogStreamName,
	})
	if err != nil {
		return nil, fmt.Errorf("describe log streams %s: %w", prefix, err)
	}

	var cases []*validation.Case
	for _, stream := range out.LogStreams {
		name := aws.ToString(stream.LogStreamName)
		if !strings.Contains(name, "app-") {
			continue
		}

		delay := time.Duration(aws.ToInt64(stream.LastIngestionTime)-aws.ToInt64(stream.LastEventTimestamp)) * time.Millisecond
		cases = append(cases, &validation.Case{
			LoggerName:   daemonSetSource,
			LoggerImage:  s.cfg.EKSAppImage,
			Throughput:   throughput,
			InputRecords: records,
			LogDelay:     validation.FormatDelay(delay),
			Prefix:       name,
		})
	}
	if len(cases) == 0 {
		s.logger.Warn("no app streams found", zap.String("prefix", prefix))
	}
	return cases, nil
}

// streamPrefix names the streams one daemonset's app containers write to.
func (s *Suite) streamPrefix(throughput string) string {
	return fmt.Sprintf("%skube.var.log.containers.ds-%s-%s", s.cfg.Prefix, s.cfg.OutputPlugin, throughput)
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
