// Package types provides common types used across Harberger.
package types

import "time"

// Account identifies a party on the host environment's value rail and
// ownership ledger. The ledger treats accounts as opaque strings; the host
// decides what they mean (an address, a user id, an IBAN).
type Account string

// IsZero reports whether the account is unset.
func (a Account) IsZero() bool { return a == "" }

// String returns the account as a plain string.
func (a Account) String() string { return string(a) }

// Entity is the base type for stored records with timestamps.
// Embed this in domain types to get automatic timestamp handling.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates a new Entity with current timestamps.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the UpdatedAt timestamp to now.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// Age returns how long ago the entity was created.
func (e Entity) Age() time.Duration {
	return time.Since(e.CreatedAt)
}

// LastModified returns how long ago the entity was last updated.
func (e Entity) LastModified() time.Duration {
	return time.Since(e.UpdatedAt)
}
