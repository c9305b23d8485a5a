package models

import (
	"math"
	"strconv"
	"strings"
)

// NormalizeID returns the canonical form of an identifier. Whitespace is
// trimmed and numeric values that went through a float conversion upstream
// ("10001.0", "1.0001e4") are rendered as plain integers.
func NormalizeID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, ".eE") {
		if f, err := strconv.ParseFloat(s, 64); err == nil &&
			f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	return s
}

// UniqueIDs normalizes ids, drops empty values and removes duplicates while
// keeping first-seen order.
func UniqueIDs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		id := NormalizeID(r)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
