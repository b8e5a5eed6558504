package verify

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/berth-dev/dbbench/internal/dataset"
)

// numericTolerance bounds the absolute or relative difference under which
// two numeric answer items are considered equal.
const numericTolerance = 1e-2

// CheckAnswer reports whether answer is correct for a task of the given kind.
// Write kinds compare the fingerprint exactly against the single expected
// value. Read kinds parse answer as a list and compare it as a multiset with
// correct. A blank answer is never correct.
func CheckAnswer(kind, answer string, correct []string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}
	if dataset.IsWriteKind(kind) {
		return len(correct) == 1 && answer == correct[0]
	}

	items, err := ParseList(answer)
	if err != nil {
		return false
	}
	return sameItems(items, correct)
}

// ParseList parses a bracketed answer list such as ["a", 'b', 3]. Both quote
// styles are accepted. A value without brackets is a one-element list.
func ParseList(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return []string{unquote(s)}, nil
	}

	// A flow sequence covers JSON lists as well as single-quoted items.
	var raw []any
	if err := yaml.Unmarshal([]byte(s), &raw); err == nil && scalarsOnly(raw) {
		out := make([]string, len(raw))
		for i, v := range raw {
			out[i] = dataset.FormatValue(v)
		}
		return out, nil
	}

	if !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("unterminated answer list %q", s)
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return []string{}, nil
	}
	parts := strings.Split(inner, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = unquote(strings.TrimSpace(p))
	}
	return out, nil
}

func scalarsOnly(items []any) bool {
	for _, v := range items {
		switch v.(type) {
		case map[string]any, []any:
			return false
		}
	}
	return true
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// sameItems matches got against want as multisets.
func sameItems(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	used := make([]bool, len(want))
	for _, g := range got {
		matched := false
		for i, w := range want {
			if !used[i] && itemEqual(g, w) {
				used[i] = true
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func itemEqual(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == b {
		return true
	}
	x, errA := strconv.ParseFloat(a, 64)
	y, errB := strconv.ParseFloat(b, 64)
	if errA != nil || errB != nil {
		return false
	}
	diff := math.Abs(x - y)
	return diff <= numericTolerance || diff <= numericTolerance*math.Max(math.Abs(x), math.Abs(y))
}
