package indicator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// ParseWindows parses a comma-separated list of SMA windows, e.g. "5,25,75".
func ParseWindows(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		w, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: bad window %q", ErrInvalidConfiguration, part)
		}
		out = append(out, w)
	}
	return out, nil
}

// ParseCrossPairs parses "FAST/SLOW" pairs separated by commas, e.g. "5/25,25/75".
func ParseCrossPairs(s string) ([]model.CrossPair, error) {
	var out []model.CrossPair
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fs, ss, ok := strings.Cut(part, "/")
		if !ok {
			return nil, fmt.Errorf("%w: bad cross pair %q (want FAST/SLOW)", ErrInvalidConfiguration, part)
		}
		fast, err1 := strconv.Atoi(strings.TrimSpace(fs))
		slow, err2 := strconv.Atoi(strings.TrimSpace(ss))
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: bad cross pair %q", ErrInvalidConfiguration, part)
		}
		out = append(out, model.CrossPair{Fast: fast, Slow: slow})
	}
	return out, nil
}

// FormatCrossPairs is the inverse of ParseCrossPairs.
func FormatCrossPairs(pairs []model.CrossPair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%d/%d", p.Fast, p.Slow)
	}
	return strings.Join(parts, ",")
}
