package dtb

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseClip parses SMIL 1.0 clip-begin/clip-end value. Supported forms are
// normal play time with optional "npt=" prefix: full and partial clock values
// ("1:02:03.5", "02:03.5") and timecounts with h, min, s or ms metric (or no
// metric meaning seconds).
func ParseClip(val string) (time.Duration, error) {
	s := strings.TrimSpace(val)
	s = strings.TrimPrefix(s, "npt=")
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrBadClip)
	}

	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) > 3 {
			return 0, fmt.Errorf("%w: %q", ErrBadClip, val)
		}
		var secs float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil || v < 0 || (i < len(parts)-1 && strings.Contains(p, ".")) {
				return 0, fmt.Errorf("%w: %q", ErrBadClip, val)
			}
			secs = secs*60 + v
		}
		return clipDuration(secs, val)
	}

	unit := 1.0
	for _, m := range []struct {
		suffix string
		factor float64
	}{
		{"ms", 0.001},
		{"min", 60},
		{"h", 3600},
		{"s", 1},
	} {
		if strings.HasSuffix(s, m.suffix) {
			s, unit = strings.TrimSuffix(s, m.suffix), m.factor
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadClip, val)
	}
	return clipDuration(v*unit, val)
}

// clipDuration converts seconds to duration, values which time.Duration
// cannot hold are rejected.
func clipDuration(secs float64, val string) (time.Duration, error) {
	ns := math.Round(secs * float64(time.Second))
	if math.IsNaN(ns) || math.IsInf(ns, 0) || ns < 0 || ns >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q is out of range", ErrBadClip, val)
	}
	return time.Duration(ns), nil
}

// CheckClip makes sure clip does not end before it begins.
func CheckClip(begin, end time.Duration) error {
	if end < begin {
		return fmt.Errorf("%w: clip-end %s is before clip-begin %s", ErrBadClip, FormatSeconds(end), FormatSeconds(begin))
	}
	return nil
}

// FormatHHMMSS formats duration as hh:mm:ss, seconds rounded half away from
// zero. Hours are not limited to 2 digits.
func FormatHHMMSS(d time.Duration) string {
	total := int64(math.Round(d.Seconds()))
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total/60%60, total%60)
}

// FormatSeconds formats duration as SMIL timecount with millisecond precision,
// for example "12.345s".
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64) + "s"
}

// ceilSeconds rounds duration up to the whole second.
func ceilSeconds(d time.Duration) time.Duration {
	switch r := d % time.Second; {
	case r > 0:
		d += time.Second - r
	case r < 0:
		d -= r
	}
	return d
}
