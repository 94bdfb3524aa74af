package web

import (
	"strconv"
	"strings"
	"time"
)

// timeNow is swapped in tests.
var timeNow = time.Now

// numericField parses site-formatted values like "$16,495" for sorting.
// Unparseable values sort last.
func numericField(s string) float64 {
	s = strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(s), "$"), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1e18
	}
	return v
}

// yearField parses years for the descending year sort. Unparseable years
// sort smallest so they land last, matching the other sort keys.
func yearField(s string) float64 {
	v := numericField(s)
	if v == 1e18 {
		return -1
	}
	return v
}
