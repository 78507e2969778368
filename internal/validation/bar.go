package validation

import (
	"fmt"

	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
)

// Bar is the quality gate a run must clear, in whole percent.
type Bar struct {
	MaxLossPercent        int
	MaxDuplicationPercent int
}

// NewBar builds the gate from the configured thresholds.
func NewBar(cfg *config.Config) Bar {
	return Bar{
		MaxLossPercent:        cfg.LossBarPercent,
		MaxDuplicationPercent: cfg.DuplicationBarPercent,
	}
}

// Failure describes one case that missed the bar.
type Failure struct {
	Case   *Case
	Reason string
}

func (f Failure) String() string {
	return fmt.Sprintf("%s/%s: %s", f.Case.LoggerName, f.Case.Throughput, f.Reason)
}

// Raise checks every case against the bar. The run passes only when no
// failures come back. An unreadable validator report always fails its case.
func (b Bar) Raise(cases []*Case) []Failure {
	var failures []Failure
	for _, c := range cases {
		if reason := b.check(c); reason != "" {
			failures = append(failures, Failure{Case: c, Reason: reason})
		}
	}
	return failures
}

func (b Bar) check(c *Case) string {
	missing, err := c.Output.Int(KeyMissing)
	if err != nil {
		return err.Error()
	}
	if missing > 0 && b.lossPercent(c, missing) > float64(b.MaxLossPercent) {
		return fmt.Sprintf("lost %d of %d records (%s%%)", missing, c.InputRecords, c.Output.PercentLoss())
	}

	dupPercent, err := c.Output.DuplicationPercent()
	if err != nil {
		return err.Error()
	}
	if dupPercent > b.MaxDuplicationPercent {
		return fmt.Sprintf("duplicated %d%% of records", dupPercent)
	}
	return ""
}

// lossPercent derives the loss rate from the known input total so the bar
// does not depend on how the validator rounds its own figure.
func (b Bar) lossPercent(c *Case, missing int) float64 {
	if c.InputRecords <= 0 {
		return 100
	}
	return float64(missing) / float64(c.InputRecords) * 100
}
