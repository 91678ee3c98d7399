package pii

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

func TestReconcile(t *testing.T) {
	t.Run("empty pool", func(t *testing.T) {
		if got := Reconcile(nil); got != nil {
			t.Errorf("Reconcile(nil) = %+v, want nil", got)
		}
	})

	t.Run("disjoint entities kept in order", func(t *testing.T) {
		pool := []Entity{
			{Type: TypePhone, Start: 20, End: 30, Source: SourcePattern},
			{Type: TypeEmail, Start: 0, End: 10, Source: SourcePattern},
		}
		got := Reconcile(pool)
		if len(got) != 2 || got[0].Type != TypeEmail || got[1].Type != TypePhone {
			t.Fatalf("got %+v, want email then phone", got)
		}
	})

	t.Run("ner outranks longer pattern", func(t *testing.T) {
		pool := []Entity{
			{Type: TypeCardNumber, Start: 0, End: 20, Source: SourcePattern},
			{Type: TypeFullName, Start: 5, End: 10, Source: SourceNER},
		}
		got := Reconcile(pool)
		if len(got) != 1 || got[0].Source != SourceNER {
			t.Fatalf("got %+v, want the single NER entity", got)
		}
	})

	t.Run("longer span wins within same source", func(t *testing.T) {
		pool := []Entity{
			{Type: TypeAadhaar, Start: 0, End: 14, Source: SourcePattern},
			{Type: TypeCardNumber, Start: 0, End: 19, Source: SourcePattern},
		}
		got := Reconcile(pool)
		if len(got) != 1 || got[0].Type != TypeCardNumber {
			t.Fatalf("got %+v, want the card entity", got)
		}
	})

	t.Run("earlier start wins at equal length and source", func(t *testing.T) {
		pool := []Entity{
			{Type: TypeCVV, Start: 2, End: 6, Source: SourcePattern},
			{Type: TypeExpiry, Start: 0, End: 4, Source: SourcePattern},
		}
		got := Reconcile(pool)
		if len(got) != 1 || got[0].Start != 0 {
			t.Fatalf("got %+v, want the earlier entity only", got)
		}
	})

	t.Run("whole span dropped, never trimmed", func(t *testing.T) {
		pool := []Entity{
			{Type: TypeCardNumber, Start: 0, End: 19, Source: SourcePattern},
			{Type: TypeCVV, Start: 15, End: 22, Source: SourcePattern},
		}
		got := Reconcile(pool)
		if len(got) != 1 {
			t.Fatalf("got %+v, want one entity", got)
		}
		if got[0].Start != 0 || got[0].End != 19 {
			t.Errorf("surviving span [%d,%d) was trimmed", got[0].Start, got[0].End)
		}
	})

	t.Run("duplicate candidates collapse", func(t *testing.T) {
		e := Entity{Type: TypeEmail, Start: 3, End: 9, Source: SourcePattern}
		got := Reconcile([]Entity{e, e, e})
		if len(got) != 1 {
			t.Fatalf("got %d entities, want 1", len(got))
		}
	})
}

func TestReconcileDeterministicAcrossInputOrder(t *testing.T) {
	pool := []Entity{
		{Type: TypeCardNumber, Start: 5, End: 24, Source: SourcePattern},
		{Type: TypeAadhaar, Start: 5, End: 19, Source: SourcePattern},
		{Type: TypeCVV, Start: 20, End: 24, Source: SourcePattern},
		{Type: TypeFullName, Start: 30, End: 38, Source: SourceNER},
		{Type: TypeEmail, Start: 40, End: 50, Source: SourcePattern},
	}

	want := Reconcile(pool)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		shuffled := make([]Entity, len(pool))
		copy(shuffled, pool)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		if got := Reconcile(shuffled); !reflect.DeepEqual(got, want) {
			t.Fatalf("iteration %d: result depends on input order:\ngot  %+v\nwant %+v", i, got, want)
		}
	}
}

func TestReconcileRandomizedInvariants(t *testing.T) {
	text := strings.Repeat("abcdefghij", 20)
	rng := rand.New(rand.NewSource(42))
	types := []EntityType{TypeEmail, TypePhone, TypeCardNumber, TypeCVV, TypeFullName}

	for iter := 0; iter < 500; iter++ {
		n := rng.Intn(12)
		pool := make([]Entity, 0, n)
		for i := 0; i < n; i++ {
			start := rng.Intn(len(text) - 1)
			end := start + 1 + rng.Intn(20)
			if end > len(text) {
				end = len(text)
			}
			source := SourcePattern
			if rng.Intn(3) == 0 {
				source = SourceNER
			}
			pool = append(pool, Entity{
				Type:   types[rng.Intn(len(types))],
				Start:  start,
				End:    end,
				Value:  text[start:end],
				Source: source,
			})
		}

		got := Reconcile(pool)
		if err := ValidateSet(text, got); err != nil {
			t.Fatalf("iteration %d: reconciled set violates invariants: %v\npool: %+v\ngot: %+v",
				iter, err, pool, got)
		}
	}
}

func TestValidateSet(t *testing.T) {
	text := "hello world"

	t.Run("accepts ordered disjoint set", func(t *testing.T) {
		set := []Entity{
			{Start: 0, End: 5, Value: "hello"},
			{Start: 6, End: 11, Value: "world"},
		}
		if err := ValidateSet(text, set); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("rejects overlap", func(t *testing.T) {
		set := []Entity{
			{Start: 0, End: 5, Value: "hello"},
			{Start: 4, End: 9, Value: "o wor"},
		}
		if err := ValidateSet(text, set); err == nil {
			t.Errorf("expected overlap error")
		}
	})

	t.Run("rejects out of bounds", func(t *testing.T) {
		set := []Entity{{Start: 6, End: 20, Value: "world"}}
		if err := ValidateSet(text, set); err == nil {
			t.Errorf("expected bounds error")
		}
	})

	t.Run("rejects value mismatch", func(t *testing.T) {
		set := []Entity{{Start: 0, End: 5, Value: "nope!"}}
		if err := ValidateSet(text, set); err == nil {
			t.Errorf("expected mismatch error")
		}
	})
}
