package profiles

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIO                 = errors.New("profile database I/O failure")
	ErrNonexistentProfile = errors.New("profile does not exist")
	ErrDisplayNameUsed    = errors.New("display name already used by another profile")
	ErrInvalidInput       = errors.New("invalid profile input")
	// ErrAnonymousEnabled is returned by operations that need multi-profile mode.
	ErrAnonymousEnabled = errors.New("anonymous profile mode is enabled")
	// ErrAnonymousDisabled is returned when asking for the anonymous profile in multi-profile mode.
	ErrAnonymousDisabled = errors.New("anonymous profile mode is disabled")
	ErrNoCurrentProfile  = errors.New("no profile is current")
	ErrProfileIsCurrent  = errors.New("cannot delete the current profile")
)

// OpenError reports every profile that failed to load while opening a store.
type OpenError struct {
	Directory string
	Causes    []error
}

func (e *OpenError) Error() string {
	msgs := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		msgs = append(msgs, c.Error())
	}
	return fmt.Sprintf("failed to open profile database %s: %s", e.Directory, strings.Join(msgs, "; "))
}

func (e *OpenError) Unwrap() []error {
	return e.Causes
}
