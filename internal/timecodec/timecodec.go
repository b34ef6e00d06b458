// Package timecodec converts between "MM:SS" step durations and seconds.
package timecodec

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxMinutes is the largest minute value the authoring side accepts.
	MaxMinutes = 120
	// MaxSeconds is the largest second value the authoring side accepts.
	MaxSeconds = 59
)

// Parse converts "MM:SS" to total seconds. Missing, non-numeric or negative
// segments count as 0 so a malformed duration still renders as a countdown.
func Parse(text string) int {
	mm, ss := split(text)
	return segment(mm)*60 + segment(ss)
}

// Format renders seconds as zero-padded "MM:SS". Minutes are not capped, so
// long durations render as e.g. "125:00". Negative input formats as "00:00".
func Format(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	return fmt.Sprintf("%02d:%02d", totalSeconds/60, totalSeconds%60)
}

// SetMinutes replaces the minute component of t with raw, clamped to
// [0, MaxMinutes]. The seconds component is kept as-is.
func SetMinutes(t, raw string) string {
	_, ss := split(t)
	return fmt.Sprintf("%02d:%s", clamp(segment(raw), MaxMinutes), padded(ss))
}

// SetSeconds replaces the second component of t with raw, clamped to
// [0, MaxSeconds]. The minutes component is kept as-is.
func SetSeconds(t, raw string) string {
	mm, _ := split(t)
	return fmt.Sprintf("%s:%02d", padded(mm), clamp(segment(raw), MaxSeconds))
}

// Normalize re-renders t with both components clamped to the authoring limits.
func Normalize(t string) string {
	mm, ss := split(t)
	return fmt.Sprintf("%02d:%02d", clamp(segment(mm), MaxMinutes), clamp(segment(ss), MaxSeconds))
}

func split(text string) (string, string) {
	mm, ss, _ := strings.Cut(text, ":")
	return mm, ss
}

func segment(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func clamp(n, limit int) int {
	if n > limit {
		return limit
	}
	return n
}

// padded keeps an untouched segment but still guarantees two digits.
func padded(s string) string {
	return fmt.Sprintf("%02d", segment(s))
}
