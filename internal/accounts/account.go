package accounts

import (
	"fmt"
	"sync"
	"time"

	"github.com/mrlokans/patron/internal/database/books"
	"github.com/mrlokans/patron/internal/entities"
	"github.com/mrlokans/patron/internal/persistence"
)

// ID identifies an account within one store. IDs are assigned in increasing order and
// never reused while the store exists.
type ID int

// Account binds a profile to one provider. Its directory, provider and book collection
// are fixed; only the description (credentials) changes.
type Account struct {
	id          ID
	dir         string
	provider    entities.ProviderDescription
	books       books.Collection
	document    persistence.Paths
	lockTimeout time.Duration

	mu          sync.Mutex
	description Description // guarded by mu
}

func (a *Account) ID() ID {
	return a.id
}

// Directory is the account's on-disk directory.
func (a *Account) Directory() string {
	return a.dir
}

func (a *Account) Provider() entities.ProviderDescription {
	return a.provider
}

// Books is the account's private book collection.
func (a *Account) Books() books.Collection {
	return a.books
}

// RequiresCredentials reports whether the provider needs a login before syncing.
func (a *Account) RequiresCredentials() bool {
	return a.provider.RequiresAuthentication()
}

// Description returns a copy of the current persisted description.
func (a *Account) Description() Description {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.description
}

// Credentials returns the account's credentials, if set.
func (a *Account) Credentials() (entities.Credentials, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.description.Credentials == nil {
		return entities.Credentials{}, false
	}
	return *a.description.Credentials, true
}

// SetCredentials replaces the account's credentials; nil clears them. The new description
// is written to disk first and becomes visible only if the write succeeded.
func (a *Account) SetCredentials(credentials *entities.Credentials) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := Description{Provider: a.description.Provider}
	if credentials != nil {
		c := *credentials
		next.Credentials = &c
	}

	if err := a.write(next); err != nil {
		return err
	}
	a.description = next
	return nil
}

// write persists d. Callers hold mu or own the account exclusively.
func (a *Account) write(d Description) error {
	data, err := encodeDescription(d)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := a.document.Write(data, a.lockTimeout); err != nil {
		return fmt.Errorf("%w: account %d: %w", ErrIO, a.id, err)
	}
	return nil
}
