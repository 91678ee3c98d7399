package pii

import "sort"

// Reconcile merges candidate entities from all producers into one ordered,
// non-overlapping set.
//
// Candidates are sorted by start ascending with longer spans first at equal
// start, then swept left to right. A candidate overlapping the last accepted
// entity either replaces it or is dropped whole; spans are never trimmed.
// Overlap resolution order: NER-sourced entities outrank pattern-sourced
// ones regardless of length, then the longer span wins, then the earlier
// start. The result is stable across runs for the same candidate pool.
func Reconcile(candidates []Entity) []Entity {
	if len(candidates) == 0 {
		return nil
	}

	pool := make([]Entity, len(candidates))
	copy(pool, candidates)
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End > b.End
		}
		if a.Source != b.Source {
			return a.Source == SourceNER
		}
		return a.Type < b.Type
	})

	out := pool[:0:0]
	for _, cand := range pool {
		if len(out) == 0 || cand.Start >= out[len(out)-1].End {
			out = append(out, cand)
			continue
		}
		last := out[len(out)-1]
		if outranks(cand, last) {
			// cand.Start >= last.Start, and accepted entities never overlap
			// each other, so the replacement cannot collide further left.
			out[len(out)-1] = cand
		}
	}
	return out
}

// outranks reports whether an overlapping candidate beats the entity it
// collides with.
func outranks(cand, held Entity) bool {
	if cand.Source != held.Source {
		return cand.Source == SourceNER
	}
	if cand.Len() != held.Len() {
		return cand.Len() > held.Len()
	}
	// Equal priority and length: the earlier-starting entity, which is the
	// one already held, wins.
	return false
}

// ValidateSet checks the ordering invariant of a reconciled entity set:
// sorted by start, spans in bounds, no overlap. A violation here is a
// programming defect, not a runtime condition.
func ValidateSet(text string, entities []Entity) error {
	prevEnd := 0
	for _, e := range entities {
		if e.Start < 0 || e.End > len(text) || e.Start >= e.End {
			return &InvariantError{Entity: e, Reason: "span out of bounds"}
		}
		if e.Start < prevEnd {
			return &InvariantError{Entity: e, Reason: "overlapping span"}
		}
		if text[e.Start:e.End] != e.Value {
			return &InvariantError{Entity: e, Reason: "value does not match span"}
		}
		prevEnd = e.End
	}
	return nil
}

// InvariantError reports an entity set that violates the non-overlap or
// bounds invariants.
type InvariantError struct {
	Entity Entity
	Reason string
}

func (e *InvariantError) Error() string {
	return "invalid entity set: " + e.Reason
}
