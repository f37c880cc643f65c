// Package feed defines catalog feed values and the parser used to read them.
//
// Real providers serve OPDS; the controller only depends on the Parser interface so the
// OPDS reader can be swapped in. JSONParser reads the JSON rendition used by tests, the
// bundled fixtures and the simple catalog servers this project talks to.
package feed

import (
	"errors"
	"time"
)

// ErrParse indicates a response body could not be read as a feed.
var ErrParse = errors.New("feed parse error")

// AvailabilityKind is the loan state of an entry as reported by the provider.
type AvailabilityKind string

const (
	AvailabilityLoanable   AvailabilityKind = "loanable"
	AvailabilityLoaned     AvailabilityKind = "loaned"
	AvailabilityHoldable   AvailabilityKind = "holdable"
	AvailabilityHeld       AvailabilityKind = "held"
	AvailabilityHeldReady  AvailabilityKind = "held_ready"
	AvailabilityOpenAccess AvailabilityKind = "open_access"
	AvailabilityRevoked    AvailabilityKind = "revoked"
)

// Valid reports whether k is one of the known kinds.
func (k AvailabilityKind) Valid() bool {
	switch k {
	case AvailabilityLoanable, AvailabilityLoaned, AvailabilityHoldable, AvailabilityHeld,
		AvailabilityHeldReady, AvailabilityOpenAccess, AvailabilityRevoked:
		return true
	}
	return false
}

// OnLoan reports whether the patron currently has the right to read the book.
func (k AvailabilityKind) OnLoan() bool {
	return k == AvailabilityLoaned || k == AvailabilityOpenAccess
}

// Availability describes an entry's loan state.
type Availability struct {
	Kind      AvailabilityKind `json:"kind"`
	StartDate *time.Time       `json:"start_date,omitempty"`
	EndDate   *time.Time       `json:"end_date,omitempty"`
	Position  *int             `json:"position,omitempty"`
}

// Entry is one book in a feed.
type Entry struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Authors        []string     `json:"authors,omitempty"`
	Publisher      string       `json:"publisher,omitempty"`
	Summary        string       `json:"summary,omitempty"`
	CoverURI       string       `json:"cover_uri,omitempty"`
	AcquisitionURI string       `json:"acquisition_uri,omitempty"`
	RevokeURI      string       `json:"revoke_uri,omitempty"`
	Updated        time.Time    `json:"updated"`
	Availability   Availability `json:"availability"`
}

// Feed is a parsed catalog or loans document.
type Feed struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Updated time.Time `json:"updated"`
	Entries []Entry   `json:"entries"`
}

// Parser turns a response body into a Feed. Implementations wrap ErrParse on failure.
type Parser interface {
	Parse(data []byte) (*Feed, error)
}
