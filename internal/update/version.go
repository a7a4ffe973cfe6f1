package update

import (
	"strconv"
	"strings"
)

// Compare compares two dot-separated version strings.
// Returns:
//
//	-1 if a < b
//	 0 if a == b
//	 1 if a > b
//
// A leading "v" is ignored and the shorter version is padded with zeros, so
// "1.2" equals "1.2.0". Segments that are not plain non-negative integers
// count as 0; this is a best-effort ordering, not a semver validator.
func Compare(a, b string) int {
	pa := splitVersion(a)
	pb := splitVersion(b)

	n := len(pa)
	if len(pb) > n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		var x, y uint64
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if x != y {
			return compareUint(x, y)
		}
	}
	return 0
}

// IsNewer reports whether candidate is strictly greater than current.
func IsNewer(candidate, current string) bool {
	return Compare(candidate, current) > 0
}

// NormalizeVersion trims whitespace and removes a leading 'v' prefix.
func NormalizeVersion(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "v") || strings.HasPrefix(s, "V") {
		return s[1:]
	}
	return s
}

func splitVersion(s string) []uint64 {
	s = NormalizeVersion(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ".")
	out := make([]uint64, len(parts))
	for i, part := range parts {
		// Non-numeric segments degrade to zero.
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err == nil {
			out[i] = n
		}
	}
	return out
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
