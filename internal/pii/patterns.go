package pii

import "regexp"

// patternRule is a single structured-PII scanner. Each rule owns its regex
// grammar and an optional structural check that does not depend on
// surrounding context (contextual checks belong to the verifier).
type patternRule struct {
	Type    EntityType
	Pattern *regexp.Regexp
	Check   func(text string, start, end int, value string) bool
}

var patternRules = []patternRule{
	{
		Type:    TypeEmail,
		Pattern: regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
	},
	{
		Type: TypePhone,
		// Standard and international shapes with optional separators. The
		// digit-count check below keeps short fragments out.
		Pattern: regexp.MustCompile(`(?:(?:\+|00)[1-9]\d{0,3}[-\s.]?)?(?:\(?\d{1,5}\)?[-\s.]?)?\d{1,5}(?:[-\s.]\d{1,5}){1,4}`),
		Check:   checkPhoneShape,
	},
	{
		Type: TypeCardNumber,
		// 16 digits optionally grouped by fours, or a bare 13-19 digit run.
		Pattern: regexp.MustCompile(`\b(?:(?:\d{4}[\s-]?){3}\d{4}|\d{13,19})\b`),
	},
	{
		Type:    TypeCVV,
		Pattern: regexp.MustCompile(`\b\d{3,4}\b`),
		Check:   checkStandaloneNumber,
	},
	{
		Type:    TypeExpiry,
		Pattern: regexp.MustCompile(`\b(?:0[1-9]|1[0-2])[/\s-](?:[0-9]{2}|20[0-9]{2})\b`),
	},
	{
		Type:    TypeAadhaar,
		Pattern: regexp.MustCompile(`\b\d{4}\s?\d{4}\s?\d{4}\b`),
	},
	{
		Type:    TypeDOB,
		Pattern: regexp.MustCompile(`\b(?:0[1-9]|[12][0-9]|3[01])[/\s-](?:0[1-9]|1[0-2])[/\s-](?:19|20)\d\d\b`),
	},
}

// DetectPatterns scans text with every enabled pattern rule and returns the
// raw candidate pool. Candidates are not deduplicated and may overlap across
// classes; reconciliation happens later.
func DetectPatterns(text string, enabled map[EntityType]bool) []Entity {
	var candidates []Entity
	for _, rule := range patternRules {
		if enabled != nil && !enabled[rule.Type] {
			continue
		}
		candidates = append(candidates, rule.detect(text)...)
	}
	return candidates
}

func (r patternRule) detect(text string) []Entity {
	var out []Entity
	for _, loc := range r.Pattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		value := text[start:end]
		if r.Check != nil && !r.Check(text, start, end, value) {
			continue
		}
		out = append(out, Entity{
			Type:   r.Type,
			Start:  start,
			End:    end,
			Value:  value,
			Source: SourcePattern,
		})
	}
	return out
}

// checkPhoneShape keeps only candidates with a plausible worldwide phone
// digit count (7-15) that either carry separators, parentheses, or an
// international prefix.
func checkPhoneShape(_ string, _, _ int, value string) bool {
	digits := 0
	formatted := false
	for _, c := range value {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '-' || c == ' ' || c == '.' || c == '(' || c == ')':
			formatted = true
		}
	}
	if digits < 7 || digits > 15 {
		return false
	}
	intl := len(value) > 1 && (value[0] == '+' || (value[0] == '0' && value[1] == '0'))
	return formatted || intl
}

// checkStandaloneNumber rejects digit runs that continue past the match,
// e.g. a 3-digit window inside a phone number or an account number.
func checkStandaloneNumber(text string, start, end int, _ string) bool {
	if start > 0 && isDigit(text[start-1]) {
		return false
	}
	if end < len(text) && isDigit(text[end]) {
		return false
	}
	return true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
