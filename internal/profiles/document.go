package profiles

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mrlokans/patron/internal/entities"
)

const dateOfBirthLayout = "2006-01-02"

// Description is the persisted state of one profile.
type Description struct {
	DisplayName string
	Preferences entities.ProfilePreferences
}

type profileDocument struct {
	DisplayName string              `json:"display_name"`
	Preferences preferencesDocument `json:"preferences"`
}

type preferencesDocument struct {
	DateOfBirth          string `json:"date_of_birth,omitempty"`
	ShowTestingLibraries bool   `json:"show_testing_libraries,omitempty"`
}

func encodeDescription(d Description) ([]byte, error) {
	doc := profileDocument{
		DisplayName: d.DisplayName,
		Preferences: preferencesDocument{ShowTestingLibraries: d.Preferences.ShowTestingLibraries},
	}
	if dob := d.Preferences.DateOfBirth; dob != nil {
		doc.Preferences.DateOfBirth = dob.UTC().Format(dateOfBirthLayout)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func decodeDescription(data []byte) (Description, error) {
	var doc profileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Description{}, fmt.Errorf("%w: malformed profile document: %v", ErrIO, err)
	}
	if strings.TrimSpace(doc.DisplayName) == "" {
		return Description{}, fmt.Errorf("%w: profile document has no display name", ErrInvalidInput)
	}

	d := Description{
		DisplayName: doc.DisplayName,
		Preferences: entities.ProfilePreferences{ShowTestingLibraries: doc.Preferences.ShowTestingLibraries},
	}
	if doc.Preferences.DateOfBirth != "" {
		dob, err := time.Parse(dateOfBirthLayout, doc.Preferences.DateOfBirth)
		if err != nil {
			return Description{}, fmt.Errorf("%w: bad date of birth %q", ErrInvalidInput, doc.Preferences.DateOfBirth)
		}
		d.Preferences.DateOfBirth = &dob
	}
	return d, nil
}

func normalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: display name is empty", ErrInvalidInput)
	}
	return name, nil
}
