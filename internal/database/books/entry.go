package books

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/mrlokans/patron/internal/feed"
)

// Entry is one book in an account's collection. The full feed entry is kept as JSON;
// the columns beside it are denormalized for querying.
type Entry struct {
	ID             string                `gorm:"primaryKey;size:512" json:"id"`
	AccountID      int                   `gorm:"index" json:"account_id"`
	Title          string                `gorm:"index;size:512" json:"title"`
	Availability   feed.AvailabilityKind `gorm:"size:32" json:"availability"`
	AcquisitionURI string                `gorm:"size:2048" json:"acquisition_uri,omitempty"`
	RevokeURI      string                `gorm:"size:2048" json:"revoke_uri,omitempty"`
	ContentPath    string                `gorm:"size:1024" json:"content_path,omitempty"`
	Feed           datatypes.JSON        `json:"feed"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func (Entry) TableName() string {
	return "book_entries"
}

// FeedEntry decodes the stored feed entry.
func (e *Entry) FeedEntry() (feed.Entry, error) {
	var fe feed.Entry
	if len(e.Feed) == 0 {
		return fe, fmt.Errorf("book entry %s has no feed data", e.ID)
	}
	if err := json.Unmarshal(e.Feed, &fe); err != nil {
		return fe, fmt.Errorf("decode feed data of %s: %w", e.ID, err)
	}
	return fe, nil
}

// Downloaded reports whether content for the book is stored locally.
func (e *Entry) Downloaded() bool {
	return e.ContentPath != ""
}

func (e *Entry) apply(fe feed.Entry) error {
	raw, err := json.Marshal(fe)
	if err != nil {
		return fmt.Errorf("encode feed entry %s: %w", fe.ID, err)
	}
	e.ID = fe.ID
	e.Title = fe.Title
	e.Availability = fe.Availability.Kind
	e.AcquisitionURI = fe.AcquisitionURI
	e.RevokeURI = fe.RevokeURI
	e.Feed = datatypes.JSON(raw)
	return nil
}
