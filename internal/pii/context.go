package pii

import (
	"strings"
	"unicode"
)

// DefaultContextWindow is the number of tokens inspected on each side of an
// ambiguous candidate.
const DefaultContextWindow = 8

// contextKeywords holds the curated keyword set per ambiguity-prone class.
// A class absent from this map is accepted without contextual verification.
var contextKeywords = map[EntityType][]string{
	TypeCardNumber: {
		"card", "credit", "debit", "visa", "mastercard", "amex",
		"payment", "account no", "card no",
	},
	TypeCVV: {
		"cvv", "cvc", "csc", "cv2", "security code", "card code",
		"verification", "security number", "security value",
	},
	TypeExpiry: {
		"expiry", "expires", "expiration", "valid thru", "valid until", "card",
	},
	TypeDOB: {
		"birth", "dob", "born", "birthday",
	},
}

// NeedsVerification reports whether a class is ambiguity-prone enough to
// require contextual acceptance.
func NeedsVerification(t EntityType) bool {
	_, ok := contextKeywords[t]
	return ok
}

// VerifyContext accepts or rejects an ambiguous candidate by inspecting a
// fixed-size token window around its span. The candidate is accepted when
// any class keyword occurs within the window. Pure and deterministic: the
// same text, span, and window always yield the same decision.
func VerifyContext(text string, candidate Entity, window int) bool {
	keywords, ok := contextKeywords[candidate.Type]
	if !ok {
		return true
	}
	if window <= 0 {
		window = DefaultContextWindow
	}

	ctx := strings.ToLower(tokenWindow(text, candidate.Start, candidate.End, window))
	for _, kw := range keywords {
		if strings.Contains(ctx, kw) {
			return true
		}
	}
	return false
}

// tokenWindow returns up to n whitespace-delimited tokens before the span
// and n after it, joined by single spaces.
func tokenWindow(text string, start, end, n int) string {
	before := strings.FieldsFunc(text[:start], unicode.IsSpace)
	if len(before) > n {
		before = before[len(before)-n:]
	}
	after := strings.FieldsFunc(text[end:], unicode.IsSpace)
	if len(after) > n {
		after = after[:n]
	}
	return strings.Join(before, " ") + " " + strings.Join(after, " ")
}
