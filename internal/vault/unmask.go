package vault

import "context"

// Unmasker is the read-side wrapper over the vault. Authorization and
// lookup are delegated entirely to the underlying store; no PII logic
// happens here.
type Unmasker struct {
	vault Vault
}

// NewUnmasker wraps a vault.
func NewUnmasker(v Vault) *Unmasker {
	return &Unmasker{vault: v}
}

// Unmask returns the original text and manifest for a masked text. For any
// record produced by the masker and saved to the vault, the returned
// original is byte-for-byte identical to the text that was masked.
func (u *Unmasker) Unmask(ctx context.Context, maskedText, accessKey string) (*MaskedRecord, error) {
	return u.vault.Lookup(ctx, maskedText, accessKey)
}

// UnmaskID returns the original text and manifest for a record id.
func (u *Unmasker) UnmaskID(ctx context.Context, id, accessKey string) (*MaskedRecord, error) {
	return u.vault.LookupID(ctx, id, accessKey)
}
