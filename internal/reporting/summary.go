package reporting

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/validation"
)

// CaseResult is one validated cell of the matrix.
type CaseResult struct {
	Source     string            `json:"source"`
	Throughput string            `json:"throughput"`
	LogDelay   string            `json:"log_delay"`
	Prefix     string            `json:"prefix"`
	ExitCode   int               `json:"exit_code"`
	Output     map[string]string `json:"output"`
}

// RunSummary is the archived record of one suite run.
type RunSummary struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Platform  string       `json:"platform"`
	Plugin    string       `json:"plugin"`
	Region    string       `json:"region"`
	Passed    bool         `json:"passed"`
	Failures  []string     `json:"failures,omitempty"`
	Cases     []CaseResult `json:"cases"`
}

// NewRunSummary assembles the archive record for a finished run.
func NewRunSummary(cfg *config.Config, cases []*validation.Case, failures []validation.Failure) *RunSummary {
	s := &RunSummary{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Platform:  cfg.Platform,
		Plugin:    cfg.OutputPlugin,
		Region:    cfg.Region,
		Passed:    len(failures) == 0,
	}
	for _, f := range failures {
		s.Failures = append(s.Failures, f.String())
	}
	for _, c := range cases {
		s.Cases = append(s.Cases, CaseResult{
			Source:     c.LoggerName,
			Throughput: c.Throughput,
			LogDelay:   c.LogDelay,
			Prefix:     c.Prefix,
			ExitCode:   c.ExitCode,
			Output:     c.Output,
		})
	}
	return s
}

// Key is the object key the summary archives under.
func (s *RunSummary) Key() string {
	return fmt.Sprintf("results/%s/%s/%s.json", s.Platform, s.Plugin, s.ID)
}

// Encode renders the summary for archival.
func (s *RunSummary) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("reporting: encode run summary: %w", err)
	}
	return data, nil
}
