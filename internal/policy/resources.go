package policy

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRequest marks a validation failure that should surface to the
// caller as a 400 with the offending field named in the message.
type ErrInvalidRequest string

func (e ErrInvalidRequest) Error() string { return string(e) }

// ParseCPU parses a CPU resource string: an integer core count ("1",
// "2") or millicores with an "m" suffix ("500m", "2000m"). It returns
// fractional cores: "500m" -> 0.5, "1" -> 1.0, "2000m" -> 2.0.
func ParseCPU(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidRequest("cpu value is empty")
	}
	if strings.HasSuffix(s, "m") {
		milli, err := strconv.ParseFloat(strings.TrimSuffix(s, "m"), 64)
		if err != nil || milli < 0 {
			return 0, ErrInvalidRequest(fmt.Sprintf("invalid cpu value %q", s))
		}
		return milli / 1000.0, nil
	}
	cores, err := strconv.ParseFloat(s, 64)
	if err != nil || cores < 0 {
		return 0, ErrInvalidRequest(fmt.Sprintf("invalid cpu value %q", s))
	}
	return cores, nil
}

const (
	ki = 1024
	mi = ki * 1024
	gi = mi * 1024
)

// ParseMemory parses a memory resource string: "Ki"/"Mi"/"Gi" suffixes
// (powers of 1024) or a raw byte count. "1Gi" -> 1073741824, "1Mi" ->
// 1048576.
func ParseMemory(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidRequest("memory value is empty")
	}

	multiplier := int64(1)
	numeric := s
	switch {
	case strings.HasSuffix(s, "Gi"):
		multiplier = gi
		numeric = strings.TrimSuffix(s, "Gi")
	case strings.HasSuffix(s, "Mi"):
		multiplier = mi
		numeric = strings.TrimSuffix(s, "Mi")
	case strings.HasSuffix(s, "Ki"):
		multiplier = ki
		numeric = strings.TrimSuffix(s, "Ki")
	}

	value, err := strconv.ParseFloat(numeric, 64)
	if err != nil || value < 0 {
		return 0, ErrInvalidRequest(fmt.Sprintf("invalid memory value %q", s))
	}
	return int64(value * float64(multiplier)), nil
}
