package relay

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// mutes are capped at 24 hours
const maxMuteMinutes = 1440

var (
	hoursTokenRe   = regexp.MustCompile(`(\d+)ч`)
	minutesTokenRe = regexp.MustCompile(`(\d+)м`)
)

// ParseDuration turns the admin-facing duration shorthand ("1ч", "30м",
// "2ч30м", or bare hours like "2") into a minute count plus the display form
// echoed back in confirmations. It never fails: empty input means one hour,
// unparseable input falls back to one hour, and the result is clamped to 24
// hours (the display keeps the tokens as typed even when the value clamps).
func ParseDuration(input string) (int, string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 60, "1 час"
	}

	totalMinutes := 0
	var timeParts []string

	if m := hoursTokenRe.FindStringSubmatch(input); m != nil {
		hours, _ := strconv.Atoi(m[1])
		totalMinutes += hours * 60
		timeParts = append(timeParts, fmt.Sprintf("%dч", hours))
	}

	if m := minutesTokenRe.FindStringSubmatch(input); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		totalMinutes += minutes
		timeParts = append(timeParts, fmt.Sprintf("%dм", minutes))
	}

	// no token matched: treat the whole input as a bare hour count
	if len(timeParts) == 0 {
		if hours, err := strconv.Atoi(input); err == nil {
			totalMinutes = hours * 60
			timeParts = append(timeParts, fmt.Sprintf("%dч", hours))
		}
	}

	if totalMinutes > maxMuteMinutes {
		totalMinutes = maxMuteMinutes
	}
	if totalMinutes <= 0 {
		return 60, "1ч"
	}
	return totalMinutes, strings.Join(timeParts, " ")
}

// FormatRemaining renders how much of a mute is left, as "2ч 5мин" or just
// "45мин" when under an hour. Sub-minute remainders truncate to 0мин.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%dч %dмин", hours, minutes)
	}
	return fmt.Sprintf("%dмин", minutes)
}
