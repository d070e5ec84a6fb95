// Package strings parses comma-separated configuration values such as broker lists.
package strings

import (
	"slices"
	"strings"
)

// SplitList splits a comma-separated value into trimmed, unique, non-empty
// entries, or nil when nothing remains.
//
//	SplitList(" kafka-1:9092, kafka-2:9092,,kafka-1:9092 ")
//	// []string{"kafka-1:9092", "kafka-2:9092"}
func SplitList(v string) []string {
	if out := DedupeAndTrim(strings.Split(v, ",")); len(out) > 0 {
		return out
	}
	return nil
}

// DedupeAndTrim trims each entry and keeps the first occurrence of every
// non-empty value. A nil or empty input is returned unchanged.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := values[:0:0]
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
