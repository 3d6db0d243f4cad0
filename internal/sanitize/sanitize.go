// Package sanitize normalizes and bounds raw input before it enters any
// transform. All functions are pure; ingress payload caps live in the HTTP
// middleware layer.
package sanitize

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	dErrors "claimgate/pkg/domain-errors"
)

// DefaultMaxTextLength bounds a single text field after sanitization.
const DefaultMaxTextLength = 10000

// Text returns s normalized to NFC with control characters stripped and the
// result truncated to maxLen runes. Newlines, tabs and carriage returns
// survive; every other control character is dropped.
func Text(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLength
	}

	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	count := 0
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\t' && r != '\r' {
			continue
		}
		if r == 0x7f {
			continue
		}
		if count >= maxLen {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

// ValidateLength walks a decoded JSON value and fails on the first string
// exceeding maxLen, naming the offending field path including array indexes.
// It short-circuits rather than collecting all violations.
func ValidateLength(v any, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLength
	}
	return validateLength(v, maxLen, "")
}

func validateLength(v any, maxLen int, path string) error {
	switch val := v.(type) {
	case string:
		if len([]rune(val)) > maxLen {
			field := path
			if field == "" {
				field = "(root)"
			}
			return dErrors.NewField(dErrors.CodeValidation, field,
				fmt.Sprintf("INPUT_TOO_LONG: exceeds %d characters", maxLen))
		}
	case map[string]any:
		// Deterministic walk order so the reported field is stable.
		keys := make([]string, 0, len(val))
		for key := range val {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			childPath := key
			if path != "" {
				childPath = path + "." + key
			}
			if err := validateLength(val[key], maxLen, childPath); err != nil {
				return err
			}
		}
	case []any:
		for i, child := range val {
			childPath := fmt.Sprintf("%s[%d]", path, i)
			if err := validateLength(child, maxLen, childPath); err != nil {
				return err
			}
		}
	}
	return nil
}
