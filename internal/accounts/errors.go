package accounts

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIO wraps filesystem failures while reading or writing account state.
	ErrIO = errors.New("account database I/O failure")
	// ErrDuplicateProvider is returned when creating a second account for a provider.
	ErrDuplicateProvider = errors.New("an account already exists for this provider")
	// ErrNonexistentProvider is returned when no account exists for a provider.
	ErrNonexistentProvider = errors.New("no account exists for this provider")
	// ErrNonexistentAccount is returned for an unknown account ID.
	ErrNonexistentAccount = errors.New("account does not exist")
	// ErrLastAccount is returned when deleting the only remaining account.
	ErrLastAccount = errors.New("cannot delete the last remaining account")
)

// OpenError reports every account that failed to load while opening a store.
type OpenError struct {
	Directory string
	Causes    []error
}

func (e *OpenError) Error() string {
	msgs := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		msgs = append(msgs, c.Error())
	}
	return fmt.Sprintf("failed to open account database %s: %s", e.Directory, strings.Join(msgs, "; "))
}

func (e *OpenError) Unwrap() []error {
	return e.Causes
}
