package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/mailsift/mailsift/internal/pii"
)

const testKey = "test-access-key"

func testRecord(masked, original string) *MaskedRecord {
	return &MaskedRecord{
		MaskedText:   masked,
		OriginalText: original,
		Entities: pii.Manifest{
			{PlaceholderIndex: 1, Type: pii.TypeEmail, Value: "a@b.co", Span: [2]int{11, 17}},
		},
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testKey)

	original := "mail me at a@b.co today"
	masked := "mail me at [EMAIL_1] today"

	id, err := m.Save(ctx, testRecord(masked, original))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == "" {
		t.Fatalf("Save returned empty id")
	}

	rec, err := m.Lookup(ctx, masked, testKey)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.OriginalText != original {
		t.Errorf("original = %q, want byte-identical %q", rec.OriginalText, original)
	}
	if len(rec.Entities) != 1 || rec.Entities[0].Value != "a@b.co" {
		t.Errorf("manifest = %+v", rec.Entities)
	}

	byID, err := m.LookupID(ctx, id, testKey)
	if err != nil {
		t.Fatalf("LookupID: %v", err)
	}
	if byID.OriginalText != original {
		t.Errorf("LookupID original = %q", byID.OriginalText)
	}
}

func TestMemoryCredentialGate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testKey)

	masked := "mail me at [EMAIL_1] today"
	if _, err := m.Save(ctx, testRecord(masked, "secret")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	t.Run("wrong key on existing record", func(t *testing.T) {
		if _, err := m.Lookup(ctx, masked, "wrong"); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("wrong key on missing record is still unauthorized", func(t *testing.T) {
		// The credential gate runs before the lookup, so an invalid key
		// never reveals whether a record exists.
		if _, err := m.Lookup(ctx, "no such text", "wrong"); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("valid key on missing record", func(t *testing.T) {
		if _, err := m.Lookup(ctx, "no such text", testKey); !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("empty configured key rejects everything", func(t *testing.T) {
		empty := NewMemory("")
		if _, err := empty.Lookup(ctx, masked, ""); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("error = %v, want ErrUnauthorized", err)
		}
	})
}

func TestMemorySaveIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testKey)

	rec := testRecord("masked [EMAIL_1]", "masked a@b.co")
	id1, err := m.Save(ctx, rec)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	id2, err := m.Save(ctx, testRecord("masked [EMAIL_1]", "masked a@b.co"))
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if id1 != id2 {
		t.Errorf("ids differ for identical content: %s vs %s", id1, id2)
	}
}

func TestMemoryLookupReturnsNewest(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testKey)
	masked := "hello [FULL_NAME_1]"

	older := &MaskedRecord{
		MaskedText:   masked,
		OriginalText: "hello Jane Smith",
		Entities: pii.Manifest{
			{PlaceholderIndex: 1, Type: pii.TypeFullName, Value: "Jane Smith", Span: [2]int{6, 16}},
		},
	}
	newer := &MaskedRecord{
		MaskedText:   masked,
		OriginalText: "hello John Doe",
		Entities: pii.Manifest{
			{PlaceholderIndex: 1, Type: pii.TypeFullName, Value: "John Doe", Span: [2]int{6, 14}},
		},
	}

	if _, err := m.Save(ctx, older); err != nil {
		t.Fatalf("Save older: %v", err)
	}
	if _, err := m.Save(ctx, newer); err != nil {
		t.Fatalf("Save newer: %v", err)
	}

	rec, err := m.Lookup(ctx, masked, testKey)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.OriginalText != "hello John Doe" {
		t.Errorf("original = %q, want the newest record", rec.OriginalText)
	}
}

func TestMemoryMaskedViewWithholdsOriginal(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testKey)

	id, err := m.Save(ctx, testRecord("masked [EMAIL_1]", "the secret original"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, err := m.Masked(ctx, id)
	if err != nil {
		t.Fatalf("Masked: %v", err)
	}
	if rec.OriginalText != "" {
		t.Errorf("redacted view leaks original: %q", rec.OriginalText)
	}
	if rec.MaskedText == "" {
		t.Errorf("redacted view missing masked text")
	}
}

func TestMemorySetCategory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testKey)

	id, err := m.Save(ctx, testRecord("masked [EMAIL_1]", "original"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := m.SetCategory(ctx, id, "Incident"); err != nil {
		t.Fatalf("SetCategory: %v", err)
	}
	rec, err := m.LookupID(ctx, id, testKey)
	if err != nil {
		t.Fatalf("LookupID: %v", err)
	}
	if rec.Category != "Incident" {
		t.Errorf("category = %q, want Incident", rec.Category)
	}

	if err := m.SetCategory(ctx, "missing", "Request"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetCategory(missing) = %v, want ErrNotFound", err)
	}
}

func TestRecordID(t *testing.T) {
	manifestA := pii.Manifest{
		{PlaceholderIndex: 1, Type: pii.TypeFullName, Value: "Jane Smith", Span: [2]int{6, 16}},
	}
	manifestB := pii.Manifest{
		{PlaceholderIndex: 1, Type: pii.TypeFullName, Value: "John Doe", Span: [2]int{6, 14}},
	}

	t.Run("stable", func(t *testing.T) {
		if RecordID("hello [FULL_NAME_1]", manifestA) != RecordID("hello [FULL_NAME_1]", manifestA) {
			t.Errorf("same content produced different ids")
		}
	})

	t.Run("same skeleton, different originals", func(t *testing.T) {
		a := RecordID("hello [FULL_NAME_1]", manifestA)
		b := RecordID("hello [FULL_NAME_1]", manifestB)
		if a == b {
			t.Errorf("records with identical masked text but different manifests must not collide")
		}
	})
}
