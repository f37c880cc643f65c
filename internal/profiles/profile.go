package profiles

import (
	"fmt"
	"sync"
	"time"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/entities"
	"github.com/mrlokans/patron/internal/persistence"
)

// ID identifies a profile. ID 0 is reserved for the anonymous profile.
type ID int

// AnonymousProfileID is the ID of the single profile in anonymous mode.
const AnonymousProfileID ID = 0

// Profile is a patron identity owning one account store.
type Profile struct {
	id          ID
	dir         string
	accounts    *accounts.Store
	document    persistence.Paths
	lockTimeout time.Duration
	store       *Store

	mu          sync.Mutex
	description Description // guarded by mu
}

func (p *Profile) ID() ID {
	return p.id
}

func (p *Profile) Directory() string {
	return p.dir
}

// IsAnonymous reports whether this is the anonymous profile.
func (p *Profile) IsAnonymous() bool {
	return p.store.mode == ModeAnonymous && p.id == AnonymousProfileID
}

// Accounts is the profile's account store.
func (p *Profile) Accounts() *accounts.Store {
	return p.accounts
}

func (p *Profile) Description() Description {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.description
}

func (p *Profile) DisplayName() string {
	return p.Description().DisplayName
}

func (p *Profile) Preferences() entities.ProfilePreferences {
	return p.Description().Preferences
}

// Age is the profile owner's age now, or -1 if no date of birth is set.
func (p *Profile) Age() int {
	return p.Preferences().Age(time.Now())
}

// SetDisplayName renames the profile. The name must be non-empty and not used by another
// profile in the same store.
func (p *Profile) SetDisplayName(name string) error {
	name, err := normalizeDisplayName(name)
	if err != nil {
		return err
	}

	p.store.mu.Lock()
	defer p.store.mu.Unlock()

	if other := p.store.findByDisplayNameLocked(name); other != nil && other != p {
		return fmt.Errorf("%w: %s", ErrDisplayNameUsed, name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.description
	next.DisplayName = name
	return p.replace(next)
}

// SetPreferences replaces the profile's preferences.
func (p *Profile) SetPreferences(prefs entities.ProfilePreferences) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.description
	next.Preferences = prefs
	return p.replace(next)
}

// replace persists d and swaps it in on success. Callers hold mu.
func (p *Profile) replace(d Description) error {
	if err := p.write(d); err != nil {
		return err
	}
	p.description = d
	return nil
}

func (p *Profile) write(d Description) error {
	data, err := encodeDescription(d)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := p.document.Write(data, p.lockTimeout); err != nil {
		return fmt.Errorf("%w: profile %d: %w", ErrIO, p.id, err)
	}
	return nil
}
