package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONParser parses the JSON rendition of a catalog feed.
type JSONParser struct{}

// NewJSONParser creates a new JSONParser.
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// Parse decodes data into a Feed and validates every entry.
func (p *JSONParser) Parse(data []byte) (*Feed, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrParse)
	}

	var f Feed
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	seen := make(map[string]bool, len(f.Entries))
	for i, e := range f.Entries {
		if e.ID == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", ErrParse, i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("%w: duplicate entry id %q", ErrParse, e.ID)
		}
		seen[e.ID] = true

		if e.Availability.Kind == "" {
			f.Entries[i].Availability.Kind = AvailabilityLoanable
		} else if !e.Availability.Kind.Valid() {
			return nil, fmt.Errorf("%w: entry %q has unknown availability %q", ErrParse, e.ID, e.Availability.Kind)
		}
	}

	return &f, nil
}

// Encode renders f in the format JSONParser reads.
func Encode(f *Feed) ([]byte, error) {
	return json.Marshal(f)
}
