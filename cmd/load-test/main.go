// cmd/load-test/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bryantbiggs/aws-for-fluent-bit/internal/cloud"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/ecs"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/eks"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/infra"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/metrics"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/reporting"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/taskdef"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/validation"
	"go.uber.org/zap"
)

const usage = `usage: load-test <mode>

modes:
  create_testing_resources   provision the testing stack for this plugin
  ECS                        run the ECS load test suite
  EKS                        run the EKS load test suite
  delete_testing_resources   tear the testing stack down (cloudwatch only)
`

func main() {
	if len(os.Args) != 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	mode := normalizeMode(os.Args[1])

	// Create logger
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting load test driver",
		zap.String("mode", mode),
		zap.String("platform", cfg.Platform),
		zap.String("output_plugin", cfg.OutputPlugin),
		zap.String("region", cfg.Region))

	switch mode {
	case "create_testing_resources":
		err = createTestingResources(ctx, cfg, logger)
	case "ecs":
		err = runECS(ctx, cfg, logger)
	case "eks":
		err = runEKS(ctx, cfg, logger)
	case "delete_testing_resources":
		err = deleteTestingResources(ctx, cfg, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("mode failed", zap.String("mode", mode), zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// normalizeMode accepts the historical CodeBuild spellings: any case, with
// dashes or underscores.
func normalizeMode(raw string) string {
	return strings.ReplaceAll(strings.ToLower(raw), "-", "_")
}

// loadConfig reads settings from LOAD_TEST_CONFIG_FILE when set, from the
// environment otherwise.
func loadConfig() (*config.Config, error) {
	if path := os.Getenv("LOAD_TEST_CONFIG_FILE"); path != "" {
		return config.LoadFile(path)
	}
	return config.LoadFromEnv()
}

// createTestingResources provisions the shared testing stack. The cloudwatch
// CodeBuild project owns the stack and deploys it; the other plugins only
// wait for it to finish creating. Every path ends with a destination
// preflight so a bad stack fails here instead of fifty minutes into a run.
func createTestingResources(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	clients, err := cloud.NewClients(ctx, cfg.Region, logger)
	if err != nil {
		return err
	}
	infraClients := clients.WithAssumedRole(cfg.CFNRoleARN)

	if cfg.OutputPlugin != config.PluginCloudWatch {
		if err := infra.NewProvisioner(infraClients.CFN, logger).WaitForStack(ctx, cfg.StackName); err != nil {
			return err
		}
		return cloud.NewPreflight(clients).Check(ctx, cfg)
	}

	if cfg.Platform == config.PlatformEKS {
		kube, err := eks.NewKubeClient("")
		if err != nil {
			return err
		}
		cluster := eks.NewCluster(kube, logger)
		if err := cluster.ScaleNodeGroup(ctx, cfg.EKSClusterName, eks.NodeTarget); err != nil {
			return err
		}
		if err := cluster.WaitForNodes(ctx, eks.NodeTarget); err != nil {
			return err
		}
		if err := cluster.EnsureNamespace(ctx); err != nil {
			return err
		}
	}

	stackDir := filepath.Join(cfg.AssetsDir, "create_testing_resources", cfg.Platform)
	if err := infra.NewStackDeployer(logger).Deploy(ctx, stackDir); err != nil {
		return err
	}
	return cloud.NewPreflight(clients).Check(ctx, cfg)
}

func runECS(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	clients, err := cloud.NewClients(ctx, cfg.Region, logger)
	if err != nil {
		return err
	}
	if err := cloud.NewPreflight(clients).Check(ctx, cfg); err != nil {
		return err
	}
	runner, err := validation.NewRunner(cfg, logger)
	if err != nil {
		return err
	}
	bucket := cloud.NewBucketStore(clients.S3, cfg.S3BucketName, logger)
	generator := taskdef.NewGenerator(cfg, clients.ECS, logger)

	cases, err := ecs.NewSuite(cfg, clients.ECS, generator, bucket, runner, logger).Run(ctx)
	if err != nil {
		return err
	}
	return finishRun(ctx, cfg, clients, cases, logger)
}

func runEKS(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	clients, err := cloud.NewClients(ctx, cfg.Region, logger)
	if err != nil {
		return err
	}
	if err := cloud.NewPreflight(clients).Check(ctx, cfg); err != nil {
		return err
	}
	kube, err := eks.NewKubeClient("")
	if err != nil {
		return err
	}
	runner, err := validation.NewRunner(cfg, logger)
	if err != nil {
		return err
	}
	sets := eks.NewDaemonSets(cfg, kube, logger)

	cases, err := eks.NewSuite(cfg, sets, clients.Logs, runner, logger).Run(ctx)
	if err != nil {
		return err
	}
	return finishRun(ctx, cfg, clients, cases, logger)
}

// deleteTestingResources tears the stack down. Only the cloudwatch project
// runs it for real; the other plugins share the stack and must leave it up.
func deleteTestingResources(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.OutputPlugin != config.PluginCloudWatch {
		logger.Info("teardown is owned by the cloudwatch project, nothing to do",
			zap.String("output_plugin", cfg.OutputPlugin))
		return nil
	}

	clients, err := cloud.NewClients(ctx, cfg.Region, logger)
	if err != nil {
		return err
	}
	infraClients := clients.WithAssumedRole(cfg.CFNRoleARN)

	teardown := infra.NewTeardown(
		infra.NewProvisioner(infraClients.CFN, logger),
		infraClients.Logs,
		cloud.NewBucketStore(infraClients.S3, cfg.S3BucketName, logger),
		logger,
	)
	if err := teardown.Run(ctx, cfg); err != nil {
		return err
	}

	if cfg.Platform == config.PlatformEKS {
		kube, err := eks.NewKubeClient("")
		if err != nil {
			return err
		}
		cluster := eks.NewCluster(kube, logger)
		if err := cluster.DeleteNamespace(ctx); err != nil {
			return err
		}
		return cluster.ScaleNodeGroup(ctx, cfg.EKSClusterName, 0)
	}
	return nil
}

// finishRun turns the collected cases into the human report, the metrics
// push, and the optional S3 archive, then raises the validation bar.
func finishRun(ctx context.Context, cfg *config.Config, clients *cloud.Clients, cases []*validation.Case, logger *zap.Logger) error {
	fmt.Printf("\n\nValidation results:\n%s", reporting.Table(cfg.OutputPlugin, cases))

	failures := validation.NewBar(cfg).Raise(cases)
	failed := make(map[*validation.Case]bool, len(failures))
	for _, f := range failures {
		failed[f.Case] = true
	}

	collector := metrics.NewCollector()
	for _, c := range cases {
		collector.ObserveCase(c, failed[c])
	}
	collector.SetRunPassed(len(failures) == 0)
	if cfg.PushgatewayURL != "" {
		if err := collector.Push(ctx, cfg.PushgatewayURL, cfg.Platform, cfg.OutputPlugin); err != nil {
			logger.Warn("failed to push metrics", zap.Error(err))
		}
	}

	if cfg.ArchiveResults {
		summary := reporting.NewRunSummary(cfg, cases, failures)
		data, err := summary.Encode()
		if err != nil {
			return err
		}
		bucket := cloud.NewBucketStore(clients.S3, cfg.S3BucketName, logger)
		if err := bucket.ArchiveResults(ctx, summary.Key(), data); err != nil {
			return err
		}
		logger.Info("archived run summary", zap.String("key", summary.Key()))
	}

	if len(failures) > 0 {
		fmt.Println("Failed validation bar:")
		for _, f := range failures {
			fmt.Println("  " + f.String())
		}
		return fmt.Errorf("[TEST_FAILURE] %d of %d cases failed the validation bar", len(failures), len(cases))
	}
	logger.Info("all cases passed the validation bar", zap.Int("cases", len(cases)))
	return nil
}
