package vault

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/mailsift/mailsift/internal/pii"
)

var (
	// ErrUnauthorized is returned when the presented access key does not
	// match the configured one. The check happens before any lookup, so an
	// invalid key never reveals whether a record exists.
	ErrUnauthorized = errors.New("invalid access key")

	// ErrNotFound is returned when the access key is valid but no record
	// matches the query.
	ErrNotFound = errors.New("no record found")
)

// MaskedRecord is the persisted unit pairing a masked text with its
// original and the substitution manifest. Records are immutable once saved
// except for the category, which is attached after classification.
type MaskedRecord struct {
	ID           string       `db:"id" json:"id"`
	MaskedText   string       `db:"masked_text" json:"masked_email"`
	OriginalText string       `db:"original_text" json:"original_email"`
	Entities     pii.Manifest `db:"-" json:"masked_entities"`
	Category     string       `db:"category" json:"category,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// Redacted returns a copy safe to hand to callers without the credential:
// the original text is dropped, everything else is kept.
func (r *MaskedRecord) Redacted() *MaskedRecord {
	cp := *r
	cp.OriginalText = ""
	return &cp
}

// Vault persists masked records durably and gates access to originals
// behind the configured access key.
type Vault interface {
	// Save stores a record and returns its id. Saving identical content
	// twice is idempotent; the record id is content-derived.
	Save(ctx context.Context, rec *MaskedRecord) (string, error)

	// Lookup returns the newest record whose masked text matches exactly.
	// Fails with ErrUnauthorized before any lookup when the key is wrong,
	// ErrNotFound when the key is valid but nothing matches.
	Lookup(ctx context.Context, maskedText, accessKey string) (*MaskedRecord, error)

	// LookupID returns the record with the given id, credential-gated the
	// same way as Lookup.
	LookupID(ctx context.Context, id, accessKey string) (*MaskedRecord, error)

	// Masked returns the redacted view of a record by id. No credential is
	// required because the original text is withheld.
	Masked(ctx context.Context, id string) (*MaskedRecord, error)

	// SetCategory attaches the classifier's category to a stored record.
	SetCategory(ctx context.Context, id, category string) error

	Close() error
}

// RecordID derives the stable content-addressed identifier for a record.
// Hashing the manifest along with the masked text keeps two different
// originals that collapse to the same placeholder skeleton from colliding.
func RecordID(maskedText string, entities pii.Manifest) string {
	h := sha256.New()
	h.Write([]byte(maskedText))
	if manifest, err := json.Marshal(entities); err == nil {
		h.Write(manifest)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// checkKey compares a presented access key against the configured one in
// constant time.
func checkKey(configured, presented string) error {
	if configured == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
