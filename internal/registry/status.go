package registry

import (
	"github.com/mrlokans/patron/internal/database/books"
	"github.com/mrlokans/patron/internal/feed"
)

// Status is the state of a book as shown to the patron.
type Status int

const (
	StatusLoanable Status = iota
	StatusHoldable
	StatusHeld
	StatusHeldReady
	StatusLoaned
	StatusLoanedDownloaded
	StatusDownloading
	StatusDownloadFailed
	StatusRevokeInProgress
	StatusRevokeFailed
)

var statusNames = map[Status]string{
	StatusLoanable:         "loanable",
	StatusHoldable:         "holdable",
	StatusHeld:             "held",
	StatusHeldReady:        "held_ready",
	StatusLoaned:           "loaned",
	StatusLoanedDownloaded: "loaned_downloaded",
	StatusDownloading:      "downloading",
	StatusDownloadFailed:   "download_failed",
	StatusRevokeInProgress: "revoke_in_progress",
	StatusRevokeFailed:     "revoke_failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transient reports whether s is set by an operation in flight or its failure rather
// than derived from the book itself.
func (s Status) Transient() bool {
	switch s {
	case StatusDownloading, StatusDownloadFailed, StatusRevokeInProgress, StatusRevokeFailed:
		return true
	}
	return false
}

// Book is the registry's view of one book.
type Book struct {
	ID          string     `json:"id"`
	AccountID   int        `json:"account_id"`
	Entry       feed.Entry `json:"entry"`
	ContentPath string     `json:"content_path,omitempty"`
}

// BookFromEntry builds a Book from a stored collection entry.
func BookFromEntry(e *books.Entry) (Book, error) {
	fe, err := e.FeedEntry()
	if err != nil {
		return Book{}, err
	}
	return Book{ID: e.ID, AccountID: e.AccountID, Entry: fe, ContentPath: e.ContentPath}, nil
}

// StatusFromBook derives a book's status from its availability and download state.
func StatusFromBook(b Book) Status {
	switch b.Entry.Availability.Kind {
	case feed.AvailabilityLoaned, feed.AvailabilityOpenAccess:
		if b.ContentPath != "" {
			return StatusLoanedDownloaded
		}
		return StatusLoaned
	case feed.AvailabilityHoldable:
		return StatusHoldable
	case feed.AvailabilityHeld:
		return StatusHeld
	case feed.AvailabilityHeldReady:
		return StatusHeldReady
	default:
		return StatusLoanable
	}
}
