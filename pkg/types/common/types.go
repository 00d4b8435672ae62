// Package common holds the small shared types used across layer boundaries:
// identifiers, pagination primitives, and the opaque list cursor.
package common

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecocomply/compliance-engine/pkg/errors"
)

// ID is a string alias for a UUID v4 entity identifier.
type ID string

// NewID generates a fresh random ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// String returns the raw identifier.
func (id ID) String() string { return string(id) }

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool { return id == "" }

// TenantID identifies the owning tenant of a record.  Tenant-scoped access
// control is enforced by an external layer; the engine only plumbs the value.
type TenantID string

// UserID identifies the actor behind an explicit action such as completing a
// deadline.
type UserID string

// SortOrder defines the direction of sorting.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// DateRange defines a closed time interval.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the range (inclusive).
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// Cursor is the opaque pagination token used by list endpoints.  It encodes
// the last row's creation timestamp and id so that pagination is stable under
// concurrent inserts.  The wire form is URL-safe base64 of
// "<unix-nanos>|<id>"; clients must treat it as opaque.
type Cursor struct {
	CreatedAt time.Time
	LastID    ID
}

// Encode serializes the cursor into its opaque wire form.
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%d|%s", c.CreatedAt.UnixNano(), c.LastID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses an opaque cursor token.  An empty token yields a zero
// cursor (start of the list).  Malformed tokens surface as a validation error
// so handlers return 400 rather than silently restarting the listing.
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, errors.New(errors.ErrCodeDeadlineCursorBad, "malformed cursor").WithCause(err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Cursor{}, errors.New(errors.ErrCodeDeadlineCursorBad, "malformed cursor")
	}
	var nanos int64
	if _, err := fmt.Sscanf(parts[0], "%d", &nanos); err != nil {
		return Cursor{}, errors.New(errors.ErrCodeDeadlineCursorBad, "malformed cursor").WithCause(err)
	}
	return Cursor{CreatedAt: time.Unix(0, nanos).UTC(), LastID: ID(parts[1])}, nil
}

// IsZero reports whether the cursor points at the start of the list.
func (c Cursor) IsZero() bool {
	return c.LastID == "" && c.CreatedAt.IsZero()
}

// Page bundles the standard limit/cursor pair for list requests.
type Page struct {
	Limit  int
	Cursor Cursor
}

// DefaultPageSize bounds list responses when the caller does not specify a
// limit.
const DefaultPageSize = 50

// MaxPageSize is the hard ceiling for a single list response.
const MaxPageSize = 500

// Clamp normalizes the page limit into [1, MaxPageSize].
func (p Page) Clamp() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}
