package transforms

import (
	"context"
	"regexp"

	"claimgate/internal/pipeline"
)

// Redaction placeholders.
const (
	redactedEmail = "[EMAIL REDACTED]"
	redactedPhone = "[PHONE REDACTED]"
	redactedPIN   = "[PIN REDACTED]"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// Default phone pattern: international-ish, at least 9 digits/separators
	// so bare 6-digit postal codes are left for the PIN rule.
	defaultPhonePattern = `\+?[0-9][0-9\-\s]{7,}[0-9]`
	pinRe               = regexp.MustCompile(`\b[0-9]{6}\b`)
)

// PIIRedactorOptions tunes country-specific detection.
type PIIRedactorOptions struct {
	// PhonePattern overrides the default phone regex for the deployment's
	// market. Invalid patterns fall back to the default.
	PhonePattern string
}

// PIIRedactor replaces emails, phone numbers and postal/PIN codes with
// placeholders and reports per-category counts.
type PIIRedactor struct {
	phoneRe *regexp.Regexp
}

func NewPIIRedactor(opts PIIRedactorOptions) *PIIRedactor {
	phoneRe := regexp.MustCompile(defaultPhonePattern)
	if opts.PhonePattern != "" {
		if re, err := regexp.Compile(opts.PhonePattern); err == nil {
			phoneRe = re
		}
	}
	return &PIIRedactor{phoneRe: phoneRe}
}

func (r *PIIRedactor) Name() string { return "pii_redactor" }

func (r *PIIRedactor) Apply(_ context.Context, input string, _ *pipeline.Context) (pipeline.Result, error) {
	counts := map[string]int{}

	text := emailRe.ReplaceAllStringFunc(input, func(string) string {
		counts["email"]++
		return redactedEmail
	})
	text = r.phoneRe.ReplaceAllStringFunc(text, func(string) string {
		counts["phone"]++
		return redactedPhone
	})
	text = pinRe.ReplaceAllStringFunc(text, func(string) string {
		counts["postalCode"]++
		return redactedPIN
	})

	result := pipeline.Result{
		Text:     text,
		Modified: text != input,
		Metadata: map[string]any{"redactions": counts},
	}
	if result.Modified {
		result.Flags = append(result.Flags, pipeline.Flag{
			Kind:        pipeline.SeverityWarn,
			Label:       "pii_redacted",
			Explanation: "personally identifiable information was removed from the text",
			Source:      r.Name(),
		})
	}
	return result, nil
}
