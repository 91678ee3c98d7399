package pii

import (
	"strings"
	"testing"
)

func allEnabled() map[EntityType]bool {
	enabled := make(map[EntityType]bool)
	for _, rule := range patternRules {
		enabled[rule.Type] = true
	}
	return enabled
}

func findByType(entities []Entity, t EntityType) []Entity {
	var out []Entity
	for _, e := range entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func TestDetectPatterns(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		typ   EntityType
		wants []string
	}{
		{
			name:  "email address",
			text:  "Please reach me at john.doe+work@example.co.uk for details",
			typ:   TypeEmail,
			wants: []string{"john.doe+work@example.co.uk"},
		},
		{
			name:  "international phone",
			text:  "Call +91 98765 43210 anytime",
			typ:   TypePhone,
			wants: []string{"+91 98765 43210"},
		},
		{
			name:  "us phone with separators",
			text:  "My number is 555-123-4567.",
			typ:   TypePhone,
			wants: []string{"555-123-4567"},
		},
		{
			name:  "grouped card number",
			text:  "card 4111 1111 1111 1111 on file",
			typ:   TypeCardNumber,
			wants: []string{"4111 1111 1111 1111"},
		},
		{
			name:  "bare card number",
			text:  "number 4111111111111111 here",
			typ:   TypeCardNumber,
			wants: []string{"4111111111111111"},
		},
		{
			name:  "expiry date",
			text:  "expires 08/26 per the statement",
			typ:   TypeExpiry,
			wants: []string{"08/26"},
		},
		{
			name:  "aadhaar",
			text:  "aadhar 1234 5678 9012 provided",
			typ:   TypeAadhaar,
			wants: []string{"1234 5678 9012"},
		},
		{
			name:  "date of birth",
			text:  "born on 15/04/1992 in Pune",
			typ:   TypeDOB,
			wants: []string{"15/04/1992"},
		},
		{
			name:  "cvv standalone",
			text:  "the cvv is 123 ok",
			typ:   TypeCVV,
			wants: []string{"123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findByType(DetectPatterns(tt.text, allEnabled()), tt.typ)
			if len(got) != len(tt.wants) {
				t.Fatalf("got %d %s candidates, want %d: %+v", len(got), tt.typ, len(tt.wants), got)
			}
			for i, want := range tt.wants {
				if got[i].Value != want {
					t.Errorf("candidate %d = %q, want %q", i, got[i].Value, want)
				}
				if tt.text[got[i].Start:got[i].End] != got[i].Value {
					t.Errorf("span [%d,%d) does not cover value %q", got[i].Start, got[i].End, got[i].Value)
				}
				if got[i].Source != SourcePattern {
					t.Errorf("source = %q, want %q", got[i].Source, SourcePattern)
				}
			}
		})
	}
}

func TestDetectPatternsRejections(t *testing.T) {
	tests := []struct {
		name string
		text string
		typ  EntityType
	}{
		{
			name: "phone with too few digits",
			text: "section 12-34 applies",
			typ:  TypePhone,
		},
		{
			name: "phone with too many digits",
			text: "ref 4111-1111-1111-1111-123 noted",
			typ:  TypePhone,
		},
		{
			name: "cvv glued to more digits",
			text: "id 123456 given",
			typ:  TypeCVV,
		},
		{
			name: "expiry month out of range",
			text: "value 13/26 recorded",
			typ:  TypeExpiry,
		},
		{
			name: "dob day out of range",
			text: "value 32/04/1992 recorded",
			typ:  TypeDOB,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findByType(DetectPatterns(tt.text, allEnabled()), tt.typ); len(got) != 0 {
				t.Errorf("got unexpected %s candidates: %+v", tt.typ, got)
			}
		})
	}
}

func TestDetectPatternsRespectsEnabledSet(t *testing.T) {
	text := "mail a@b.co and cvv 123"
	enabled := map[EntityType]bool{TypeEmail: true}

	got := DetectPatterns(text, enabled)
	if len(got) != 1 || got[0].Type != TypeEmail {
		t.Fatalf("got %+v, want only the email candidate", got)
	}
}

func TestDetectPatternsOverlappingClasses(t *testing.T) {
	// A grouped card number also matches the aadhaar grammar on its first
	// twelve digits. Both candidates survive detection; reconciliation
	// resolves the overlap later.
	text := "card 4111 1111 1111 1111 on file"
	got := DetectPatterns(text, allEnabled())

	if n := len(findByType(got, TypeCardNumber)); n != 1 {
		t.Errorf("card candidates = %d, want 1", n)
	}
	if n := len(findByType(got, TypeAadhaar)); n == 0 {
		t.Errorf("expected an aadhaar candidate overlapping the card number")
	}
	for _, e := range got {
		if !strings.Contains(text, e.Value) {
			t.Errorf("candidate value %q not present in text", e.Value)
		}
	}
}
