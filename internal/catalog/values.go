package catalog

import (
	"math"
	"strconv"
	"strings"
)

// decimal converts stored decimal text to a float64. Empty or unparsable
// text resolves to nil so that it behaves as an absent value.
func decimal(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func optionalDecimal(s *string) any {
	if s == nil {
		return nil
	}
	return decimal(*s)
}

func tags(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}
