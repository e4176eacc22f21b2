// Package sanitize implements the Content Sanitizer: PII and URL removal
// from user content before it leaves the process (into an LLM prompt or a
// log line). The pattern-table/mask shape is adapted from
// infrastructure/security's SanitizeString, retargeted from secret-scrubbing
// to PII/URL-scrubbing.
package sanitize

import "regexp"

// Pattern is one detect-and-mask rule.
type Pattern struct {
	Name    string
	Pattern *regexp.Regexp
	Mask    string
}

var patterns = []Pattern{
	{
		Name:    "URL",
		Pattern: regexp.MustCompile(`https?://\S+`),
		Mask:    "[URL_REMOVED]",
	},
	{
		Name:    "Email",
		Pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		Mask:    "[EMAIL_REMOVED]",
	},
	{
		Name:    "Phone",
		Pattern: regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		Mask:    "[PHONE_REMOVED]",
	},
	{
		Name:    "SSN",
		Pattern: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		Mask:    "[SSN_REMOVED]",
	},
	{
		Name:    "Credit Card",
		Pattern: regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
		Mask:    "[CC_REMOVED]",
	},
}

// Result is the sanitized text plus a per-pattern removal count, surfaced in
// the dispatcher's build result and logged per the spec.
type Result struct {
	Text    string
	Removed map[string]int
}

// Sanitize strips PII and URLs from input, returning the scrubbed text and
// counts of what was removed.
func Sanitize(input string) Result {
	result := Result{Text: input, Removed: make(map[string]int)}
	if input == "" {
		return result
	}

	for _, p := range patterns {
		matches := p.Pattern.FindAllString(result.Text, -1)
		if len(matches) == 0 {
			continue
		}
		result.Removed[p.Name] = len(matches)
		result.Text = p.Pattern.ReplaceAllString(result.Text, p.Mask)
	}
	return result
}

// TotalRemoved sums the per-pattern counts in a Result.
func (r Result) TotalRemoved() int {
	total := 0
	for _, n := range r.Removed {
		total += n
	}
	return total
}

// String is a convenience for callers that only need the scrubbed text.
func String(input string) string {
	return Sanitize(input).Text
}
