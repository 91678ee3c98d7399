package pii

import (
	"fmt"
	"strings"
)

// Mask replaces each entity span with a typed, per-type indexed placeholder
// and returns the masked text together with the substitution manifest.
//
// Entities must be a reconciled set (ordered, non-overlapping). Substitution
// walks the text once, accumulating the offset drift introduced by earlier
// replacements so later placeholders land at the correct position. Indices
// are scoped per type and start at 1, so two full_name entities in one text
// become [FULL_NAME_1] and [FULL_NAME_2].
func Mask(text string, entities []Entity) (string, Manifest, error) {
	if err := ValidateSet(text, entities); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	manifest := make(Manifest, 0, len(entities))
	counts := make(map[EntityType]int)
	pos := 0

	for _, e := range entities {
		counts[e.Type]++
		b.WriteString(text[pos:e.Start])
		b.WriteString(Placeholder(e.Type, counts[e.Type]))
		pos = e.End

		manifest = append(manifest, ManifestEntry{
			PlaceholderIndex: counts[e.Type],
			Type:             e.Type,
			Value:            e.Value,
			Span:             [2]int{e.Start, e.End},
		})
	}
	b.WriteString(text[pos:])

	return b.String(), manifest, nil
}

// Placeholder renders the typed marker substituted into masked text, e.g.
// [EMAIL_1] or [FULL_NAME_2].
func Placeholder(t EntityType, index int) string {
	return fmt.Sprintf("[%s_%d]", strings.ToUpper(string(t)), index)
}
