package schedule

import (
	"sort"
	"strconv"
	"strings"
)

// FormatDaySet serializes a day set to a comma-separated string column,
// e.g. {1,3,5} -> "1,3,5". An empty set formats as "".
func FormatDaySet(days map[int]struct{}) string {
	if len(days) == 0 {
		return ""
	}
	sorted := make([]int, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Ints(sorted)

	parts := make([]string, len(sorted))
	for i, d := range sorted {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// ParseDaySet reverse-parses FormatDaySet's output back into a day set.
// This is the fix for §9's flagged bug: the teacher persists the
// comma-separated column but never implements the reverse parse.
func ParseDaySet(raw string) map[int]struct{} {
	days := map[int]struct{}{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return days
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		days[n] = struct{}{}
	}
	return days
}
