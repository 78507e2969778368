// Package validation runs the external log validator and gates runs on its
// findings.
package validation

import (
	"fmt"
	"strconv"
	"strings"
)

// Keys the validator reports on stdout.
const (
	KeyMissing          = "missing"
	KeyDuplicate        = "duplicate"
	KeyUnique           = "unique"
	KeyTotalDestination = "total_destination"
	KeyTotalInput       = "total_input_record"
	KeyPercentLoss      = "percent_loss"
)

// Output holds the parsed validator report, one value per metric key.
type Output map[string]string

// ParseOutput extracts the report pairs from raw validator stdout. Pairs
// are lines of the form "key,  value" separated by a comma and exactly two
// spaces; everything else is progress noise and is dropped.
func ParseOutput(raw []byte) Output {
	out := Output{}
	for _, line := range strings.Split(string(raw), "\n") {
		parts := strings.Split(line, ",  ")
		if len(parts) != 2 {
			continue
		}
		out[parts[0]] = parts[1]
	}
	return out
}

// Int reads one numeric metric from the report.
func (o Output) Int(key string) (int, error) {
	raw, ok := o[key]
	if !ok {
		return 0, fmt.Errorf("validation: output has no %q", key)
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("validation: output %s: %w", key, err)
	}
	return v, nil
}

// PercentLoss returns the loss figure exactly as the validator printed it.
func (o Output) PercentLoss() string {
	return o[KeyPercentLoss]
}

// DuplicationPercent computes the whole-percent duplication rate, rounding
// down. A report with zero duplicates never needs the destination total.
func (o Output) DuplicationPercent() (int, error) {
	dup, err := o.Int(KeyDuplicate)
	if err != nil {
		return 0, err
	}
	if dup == 0 {
		return 0, nil
	}
	total, err := o.Int(KeyTotalDestination)
	if err != nil {
		return 0, err
	}
	if total <= 0 {
		return 100, nil
	}
	return dup * 100 / total, nil
}
