package parameters

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// iso8601DurationPattern covers the PnDTnHnMn.nS subset used by service
// instance parameters. Weeks and calendar units are not accepted.
var iso8601DurationPattern = regexp.MustCompile(`(?i)^(-)?P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d{1,9})?)S)?)?$`)

// ParseISO8601Duration converts an ISO-8601 duration such as "PT15M" or
// "P1DT12H" into a time.Duration.
func ParseISO8601Duration(value string) (time.Duration, error) {
	groups := iso8601DurationPattern.FindStringSubmatch(value)
	if groups == nil {
		return 0, fmt.Errorf("not an ISO-8601 duration: %q", value)
	}

	days := groups[2]
	hours := groups[3]
	minutes := groups[4]
	seconds := groups[5]
	if days == "" && hours == "" && minutes == "" && seconds == "" {
		return 0, fmt.Errorf("not an ISO-8601 duration: %q", value)
	}

	var total time.Duration
	if days != "" {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil {
			return 0, err
		}
		total += time.Duration(n) * 24 * time.Hour
	}
	if hours != "" {
		n, err := strconv.ParseInt(hours, 10, 64)
		if err != nil {
			return 0, err
		}
		total += time.Duration(n) * time.Hour
	}
	if minutes != "" {
		n, err := strconv.ParseInt(minutes, 10, 64)
		if err != nil {
			return 0, err
		}
		total += time.Duration(n) * time.Minute
	}
	if seconds != "" {
		f, err := strconv.ParseFloat(seconds, 64)
		if err != nil {
			return 0, err
		}
		total += time.Duration(f * float64(time.Second))
	}

	if groups[1] == "-" {
		total = -total
	}
	return total, nil
}
