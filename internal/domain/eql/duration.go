package eql

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var durationUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"ms", time.Millisecond},
	{"s", time.Second},
	{"m", time.Minute},
	{"h", time.Hour},
	{"d", 24 * time.Hour},
}

// ParseDuration parses an integer followed by a unit (ms, s, m, h, d).
// Signs are accepted so the validator can reject non-positive spans with
// a precise message.
func ParseDuration(lit string) (time.Duration, error) {
	for _, u := range durationUnits {
		num, ok := strings.CutSuffix(lit, u.suffix)
		if !ok || num == "" || !isDigit(num[len(num)-1]) {
			continue
		}
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, lit)
		}
		if limit := int64(math.MaxInt64 / u.unit); n > limit || n < -limit {
			return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidDuration, lit)
		}
		return time.Duration(n) * u.unit, nil
	}
	return 0, fmt.Errorf("%w: %q (expected a number followed by ms, s, m, h or d)", ErrInvalidDuration, lit)
}

// FormatDuration renders d with the largest unit that divides it exactly.
// Zero renders as 0ms.
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "0ms"
	}
	for i := len(durationUnits) - 1; i >= 0; i-- {
		u := durationUnits[i]
		if d%u.unit == 0 {
			return strconv.FormatInt(int64(d/u.unit), 10) + u.suffix
		}
	}
	return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
}
