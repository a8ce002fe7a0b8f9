package host

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupported is returned for operations the current platform cannot perform
var ErrUnsupported = errors.New("not supported on this platform")

// ParseMemory parses memory strings like "512M", "1G" into bytes.
// Suffixes are binary (K = 1024) and case-insensitive; a bare number is bytes.
func ParseMemory(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("memory string cannot be empty")
	}

	var multiplier int64 = 1
	num := s
	switch strings.ToUpper(s[len(s)-1:]) {
	case "G":
		multiplier = 1024 * 1024 * 1024
		num = s[:len(s)-1]
	case "M":
		multiplier = 1024 * 1024
		num = s[:len(s)-1]
	case "K":
		multiplier = 1024
		num = s[:len(s)-1]
	}

	val, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory string %q: %w", s, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid memory string: %s", s)
	}
	if val > (1<<63-1)/multiplier {
		return 0, fmt.Errorf("memory string %q overflows", s)
	}

	return val * multiplier, nil
}

// FormatBytes renders a byte count with the largest whole binary unit
func FormatBytes(n uint64) string {
	const (
		kiB = 1 << 10
		miB = 1 << 20
		giB = 1 << 30
	)
	switch {
	case n >= giB:
		return fmt.Sprintf("%.2fG", float64(n)/float64(giB))
	case n >= miB:
		return fmt.Sprintf("%.2fM", float64(n)/float64(miB))
	case n >= kiB:
		return fmt.Sprintf("%.2fK", float64(n)/float64(kiB))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
