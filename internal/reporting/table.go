// Package reporting renders run results: the markdown matrix printed at
// the end of a suite and the JSON summary archived to S3.
package reporting

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bryantbiggs/aws-for-fluent-bit/internal/config"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/resources"
	"github.com/bryantbiggs/aws-for-fluent-bit/internal/validation"
)

// Fixed markdown column widths, in characters.
const (
	pluginColWidth     = 26
	sourceColWidth     = 22
	metricColWidth     = 28
	throughputColWidth = 15
)

const checkMark = "✅"

// PluginDisplayNames maps configured plugin keys to the Fluent Bit output
// plugin names shown in the results table.
var PluginDisplayNames = map[string]string{
	config.PluginKinesis:    "kinesis_streams",
	config.PluginFirehose:   "kinesis_firehose",
	config.PluginS3:         "s3",
	config.PluginCloudWatch: "cloudwatch_logs",
}

// Table renders the validation results as a markdown matrix: one column
// per throughput level, a Log Loss and a Log Duplication row per source.
// Clean cells show a check mark, dirty ones the percentage and raw count.
// A cell covers every case for its source and throughput level; daemonset
// runs yield one case per app stream and the worst one wins the cell.
func Table(plugin string, cases []*validation.Case) string {
	display := PluginDisplayNames[plugin]
	if display == "" {
		display = plugin
	}
	sources := sourceNames(cases)
	throughputs := throughputLevels(cases)

	var b strings.Builder
	b.WriteString("|" + ljust(" plugin", pluginColWidth) + "|" + ljust(" source", sourceColWidth) + "|" + ljust("", metricColWidth) + "|")
	for _, mb := range throughputs {
		b.WriteString(ljust(fmt.Sprintf(" %d MB/s", mb), throughputColWidth) + "|")
	}
	b.WriteString("\n|" + strings.Repeat("-", pluginColWidth) + "|" + strings.Repeat("-", sourceColWidth) + "|" + strings.Repeat("-", metricColWidth) + "|")
	for range throughputs {
		b.WriteString(strings.Repeat("-", throughputColWidth) + "|")
	}
	b.WriteString("\n")

	for _, source := range sources {
		b.WriteString("|" + ljust(" "+display, pluginColWidth) + "|" + ljust(" "+source, sourceColWidth) + "|" + ljust(" Log Loss", metricColWidth) + "|")
		for _, mb := range throughputs {
			b.WriteString(ljust(lossCell(matches(cases, source, mb)), throughputColWidth) + "|")
		}
		b.WriteString("\n")

		b.WriteString("|" + ljust(" ", pluginColWidth) + "|" + ljust(" ", sourceColWidth) + "|" + ljust(" Log Duplication", metricColWidth) + "|")
		for _, mb := range throughputs {
			b.WriteString(ljust(duplicationCell(matches(cases, source, mb)), throughputColWidth) + "|")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// lossCell shows the highest missing count in the cell. Any unreadable
// report renders the whole cell n/a; the bar failure names the case.
func lossCell(cs []*validation.Case) string {
	if len(cs) == 0 {
		return " n/a"
	}
	var worst *validation.Case
	worstMissing := 0
	for _, c := range cs {
		missing, err := c.Output.Int(validation.KeyMissing)
		if err != nil {
			return " n/a"
		}
		if worst == nil || missing > worstMissing {
			worst, worstMissing = c, missing
		}
	}
	if worstMissing != 0 {
		return worst.Output.PercentLoss() + "%(" + strconv.Itoa(worstMissing) + ")"
	}
	return " " + checkMark
}

// duplicationCell shows the highest duplicate count in the cell.
func duplicationCell(cs []*validation.Case) string {
	if len(cs) == 0 {
		return " n/a"
	}
	var worst *validation.Case
	worstDuplicate := 0
	for _, c := range cs {
		duplicate, err := c.Output.Int(validation.KeyDuplicate)
		if err != nil {
			return " n/a"
		}
		if worst == nil || duplicate > worstDuplicate {
			worst, worstDuplicate = c, duplicate
		}
	}
	if worstDuplicate == 0 {
		return " " + checkMark
	}
	percent, err := worst.Output.DuplicationPercent()
	if err != nil {
		return " n/a"
	}
	return fmt.Sprintf("%d%%(%d)", percent, worstDuplicate)
}

// matches returns every case for a source and throughput level.
func matches(cases []*validation.Case, source string, mb int) []*validation.Case {
	var out []*validation.Case
	for _, c := range cases {
		if c.LoggerName != source {
			continue
		}
		if n, err := resources.ThroughputMB(c.Throughput); err == nil && n == mb {
			out = append(out, c)
		}
	}
	return out
}

func sourceNames(cases []*validation.Case) []string {
	seen := map[string]bool{}
	var names []string
	for _, c := range cases {
		if !seen[c.LoggerName] {
			seen[c.LoggerName] = true
			names = append(names, c.LoggerName)
		}
	}
	sort.Strings(names)
	return names
}

// throughputLevels extracts the distinct throughput levels in MB/s,
// numerically sorted so 2m sorts before 10m.
func throughputLevels(cases []*validation.Case) []int {
	seen := map[int]bool{}
	var levels []int
	for _, c := range cases {
		n, err := resources.ThroughputMB(c.Throughput)
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		levels = append(levels, n)
	}
	sort.Ints(levels)
	return levels
}

// ljust pads to a fixed display width, counting runes the way terminal
// columns do.
func ljust(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
