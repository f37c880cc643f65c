package entities

import "time"

// ProfilePreferences are per-profile settings persisted with the profile.
type ProfilePreferences struct {
	DateOfBirth          *time.Time
	ShowTestingLibraries bool
}

// Age returns the profile owner's age in whole years at now, or -1 if unknown.
func (p ProfilePreferences) Age(now time.Time) int {
	if p.DateOfBirth == nil {
		return -1
	}
	dob := p.DateOfBirth.UTC()
	now = now.UTC()
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return -1
	}
	return age
}
