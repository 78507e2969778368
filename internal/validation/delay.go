package validation

import (
	"fmt"
	"time"
)

// FormatDelay renders a log delay as zero padded minutes and seconds, e.g.
// "02m35s". Delays wrap at the hour and negative measurements clamp to
// zero; the figure is informational only.
func FormatDelay(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d.Seconds())
	return fmt.Sprintf("%02dm%02ds", s/60%60, s%60)
}
