package pii

// EntityType identifies a PII class.
type EntityType string

const (
	TypeEmail      EntityType = "email"
	TypePhone      EntityType = "phone_number"
	TypeCardNumber EntityType = "credit_debit_no"
	TypeCVV        EntityType = "cvv_no"
	TypeExpiry     EntityType = "expiry_no"
	TypeAadhaar    EntityType = "aadhar_num"
	TypeDOB        EntityType = "dob"
	TypeFullName   EntityType = "full_name"
)

// Source identifies which producer emitted a candidate entity.
type Source string

const (
	SourcePattern Source = "pattern"
	SourceNER     Source = "ner"
)

// Entity is one detected PII occurrence. Start and End are half-open byte
// offsets into the source text: 0 <= Start < End <= len(text).
type Entity struct {
	Type   EntityType `json:"classification"`
	Start  int        `json:"start"`
	End    int        `json:"end"`
	Value  string     `json:"entity"`
	Source Source     `json:"source"`
}

// Len returns the span length in bytes.
func (e Entity) Len() int { return e.End - e.Start }

func (e Entity) overlaps(o Entity) bool {
	return e.Start < o.End && o.Start < e.End
}

// ManifestEntry maps one placeholder back to the value it replaced.
type ManifestEntry struct {
	PlaceholderIndex int        `json:"placeholder_index"`
	Type             EntityType `json:"classification"`
	Value            string     `json:"entity"`
	Span             [2]int     `json:"position"`
}

// Manifest is the ordered record of substitutions performed on one text,
// in the order they were applied. It is the only carrier of positional
// ground truth for a masked text.
type Manifest []ManifestEntry

// Finding is an aggregate detection summary safe to log and broadcast:
// entity types and counts only, never values or spans.
type Finding struct {
	EntityType EntityType `json:"entityType"`
	Count      int        `json:"count"`
}

// Result contains the outcome of processing one text.
type Result struct {
	MaskedText string    `json:"maskedText"`
	Entities   []Entity  `json:"entities"`
	Manifest   Manifest  `json:"manifest"`
	Findings   []Finding `json:"findings"`
	Original   string    `json:"-"` // never serialized
}
