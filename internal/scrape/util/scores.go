package util

import (
	"strconv"
	"strings"
)

// Score bounds for the numeric badges. Values outside are treated as absent.
const (
	GPAMin     = 0.0
	GPAMax     = 4.0
	GREMin     = 130.0
	GREMax     = 170.0
	WritingMin = 0.0
	WritingMax = 6.0
)

// ParseScore parses raw and keeps it only when lo <= v <= hi.
func ParseScore(raw string, lo, hi float64) (*float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < lo || v > hi {
		return nil, false
	}
	return &v, true
}

// ParseGPA rejects zero as well; the site prints "0.00" for "not given".
func ParseGPA(raw string) *float64 {
	v, ok := ParseScore(raw, GPAMin, GPAMax)
	if !ok || *v == 0 {
		return nil
	}
	return v
}

func ParseGRE(raw string) *float64 {
	v, _ := ParseScore(raw, GREMin, GREMax)
	return v
}

func ParseWriting(raw string) *float64 {
	v, _ := ParseScore(raw, WritingMin, WritingMax)
	return v
}
