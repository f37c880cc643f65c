// Package profiles manages the profiles stored under the application data directory.
//
//	<data>/profiles/
//	└── <id>/
//	    ├── profile.json   {display_name, preferences}
//	    ├── lock
//	    └── accounts/      account store of the profile
//
// A store runs in one of two modes fixed at Open. In multi-profile mode profiles are
// created and selected explicitly and ID 0 is never used. In anonymous mode the single
// profile 0 exists and is always current.
package profiles

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/database/books"
	"github.com/mrlokans/patron/internal/entities"
	"github.com/mrlokans/patron/internal/persistence"
)

const (
	profilesDirName      = "profiles"
	accountsDirName      = "accounts"
	documentName         = "profile.json"
	deletedSuffix        = ".deleted"
	anonymousDisplayName = "Anonymous"
	openParallelism      = 4
)

// Mode selects how a store handles profiles.
type Mode int

const (
	ModeMultiple Mode = iota
	ModeAnonymous
)

func (m Mode) String() string {
	if m == ModeAnonymous {
		return "anonymous"
	}
	return "multiple"
}

// ProviderCatalog is the set of providers known to the application.
type ProviderCatalog interface {
	ProviderByID(id string) (entities.ProviderDescription, bool)
	AutomaticProviders() []entities.ProviderDescription
	DefaultProvider() entities.ProviderDescription
}

// BundledCredentials supplies credentials shipped with the application for a provider.
type BundledCredentials interface {
	CredentialsFor(providerID string) (entities.Credentials, bool)
}

// Config holds the collaborators of a Store. Profiles are kept under
// Directory/profiles. BundledCredentials may be nil.
type Config struct {
	Directory          string
	Mode               Mode
	Providers          ProviderCatalog
	BundledCredentials BundledCredentials
	BookDatabase       books.Opener
	LockTimeout        time.Duration
}

type Store struct {
	dir         string
	mode        Mode
	providers   ProviderCatalog
	bundled     BundledCredentials
	bookDB      books.Opener
	lockTimeout time.Duration

	mu       sync.Mutex
	profiles map[ID]*Profile // guarded by mu
	current  *Profile        // guarded by mu
}

// Open loads the profiles of cfg.Directory. In anonymous mode the anonymous profile is
// created if absent. Any profile that fails to load fails the whole open with *OpenError.
func Open(cfg Config) (*Store, error) {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = persistence.DefaultLockTimeout
	}
	dir := filepath.Join(cfg.Directory, profilesDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrIO, dir, err)
	}

	s := &Store{
		dir:         dir,
		mode:        cfg.Mode,
		providers:   cfg.Providers,
		bundled:     cfg.BundledCredentials,
		bookDB:      cfg.BookDatabase,
		lockTimeout: cfg.LockTimeout,
		profiles:    make(map[ID]*Profile),
	}

	var err error
	if cfg.Mode == ModeAnonymous {
		err = s.openAnonymous()
	} else {
		err = s.openMultiple()
	}
	if err != nil {
		s.Close()
		return nil, err
	}

	log.Printf("[PROFILES] opened %d profiles in %s (%s mode)", len(s.profiles), dir, cfg.Mode)
	return s, nil
}

func (s *Store) openAnonymous() error {
	dir := s.profileDir(AnonymousProfileID)
	if _, err := os.Stat(filepath.Join(dir, documentName)); err == nil {
		p, err := s.load(AnonymousProfileID)
		if err != nil {
			return &OpenError{Directory: s.dir, Causes: []error{err}}
		}
		s.profiles[p.id] = p
		s.current = p
		return nil
	}

	p, err := s.create(AnonymousProfileID, anonymousDisplayName, entities.ProfilePreferences{})
	if err != nil {
		return err
	}
	s.profiles[p.id] = p
	s.current = p
	return nil
}

func (s *Store) openMultiple() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("%w: list %s: %w", ErrIO, s.dir, err)
	}

	var (
		mu     sync.Mutex
		loaded []*Profile
		causes []error
	)
	g := new(errgroup.Group)
	g.SetLimit(openParallelism)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, deletedSuffix) {
			if err := os.RemoveAll(filepath.Join(s.dir, name)); err != nil {
				log.Printf("[PROFILES] could not remove deleted profile directory %s: %v", name, err)
			}
			continue
		}
		n, err := strconv.Atoi(name)
		if err != nil || n < 0 {
			log.Printf("[PROFILES] ignoring non-profile directory %s", name)
			continue
		}
		if ID(n) == AnonymousProfileID {
			log.Printf("[PROFILES] ignoring reserved profile directory %s", name)
			continue
		}

		id := ID(n)
		g.Go(func() error {
			p, err := s.load(id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				causes = append(causes, err)
			} else {
				loaded = append(loaded, p)
			}
			return nil
		})
	}
	g.Wait()

	sort.Slice(loaded, func(i, j int) bool { return loaded[i].id < loaded[j].id })
	for _, p := range loaded {
		if other := s.findByDisplayNameLocked(p.description.DisplayName); other != nil {
			causes = append(causes, fmt.Errorf("%w: profiles %d and %d are both named %q",
				ErrDisplayNameUsed, other.id, p.id, p.description.DisplayName))
			p.accounts.Close()
			continue
		}
		s.profiles[p.id] = p
	}

	if len(causes) > 0 {
		return &OpenError{Directory: s.dir, Causes: causes}
	}
	return nil
}

func (s *Store) load(id ID) (*Profile, error) {
	dir := s.profileDir(id)
	paths := persistence.DocumentPaths(dir, documentName)

	data, err := paths.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: profile %d: %w", ErrIO, id, err)
	}
	desc, err := decodeDescription(data)
	if err != nil {
		return nil, fmt.Errorf("profile %d: %w", id, err)
	}

	accountStore, err := s.openAccounts(dir)
	if err != nil {
		return nil, fmt.Errorf("profile %d: %w", id, err)
	}
	if accountStore.Len() == 0 {
		if err := s.provisionAccounts(accountStore); err != nil {
			accountStore.Close()
			return nil, fmt.Errorf("profile %d: %w", id, err)
		}
	}

	return s.newProfile(id, dir, accountStore, desc), nil
}

// create writes a new profile directory and provisions its accounts. The directory is
// removed again if anything fails.
func (s *Store) create(id ID, name string, prefs entities.ProfilePreferences) (p *Profile, err error) {
	dir := s.profileDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create profile directory: %w", ErrIO, err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()

	desc := Description{DisplayName: name, Preferences: prefs}
	accountStore, err := s.openAccounts(dir)
	if err != nil {
		return nil, err
	}
	p = s.newProfile(id, dir, accountStore, desc)

	if err := p.write(desc); err != nil {
		accountStore.Close()
		return nil, err
	}
	if err := s.provisionAccounts(accountStore); err != nil {
		accountStore.Close()
		return nil, err
	}

	log.Printf("[PROFILES] created profile %d (%s) with %d accounts", id, name, accountStore.Len())
	return p, nil
}

func (s *Store) newProfile(id ID, dir string, accountStore *accounts.Store, desc Description) *Profile {
	return &Profile{
		id:          id,
		dir:         dir,
		accounts:    accountStore,
		document:    persistence.DocumentPaths(dir, documentName),
		lockTimeout: s.lockTimeout,
		store:       s,
		description: desc,
	}
}

func (s *Store) openAccounts(profileDir string) (*accounts.Store, error) {
	accountStore, err := accounts.Open(accounts.Config{
		Directory:    filepath.Join(profileDir, accountsDirName),
		Providers:    s.providers,
		BookDatabase: s.bookDB,
		LockTimeout:  s.lockTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return accountStore, nil
}

// provisionAccounts creates accounts for every automatic provider, attaching bundled
// credentials where available, and falls back to the default provider so the store is
// never left empty.
func (s *Store) provisionAccounts(store *accounts.Store) error {
	for _, provider := range s.providers.AutomaticProviders() {
		if _, err := store.AccountByProvider(provider.ID); err == nil {
			continue
		}
		account, err := store.CreateAccount(provider)
		if err != nil {
			return fmt.Errorf("%w: provision %s: %w", ErrIO, provider.ID, err)
		}
		if s.bundled == nil {
			continue
		}
		if creds, ok := s.bundled.CredentialsFor(provider.ID); ok {
			if err := account.SetCredentials(&creds); err != nil {
				return fmt.Errorf("%w: bundled credentials for %s: %w", ErrIO, provider.ID, err)
			}
		}
	}

	if store.Len() > 0 {
		return nil
	}
	provider := s.providers.DefaultProvider()
	if _, err := store.CreateAccount(provider); err != nil {
		return fmt.Errorf("%w: provision default %s: %w", ErrIO, provider.ID, err)
	}
	return nil
}

// Mode is the mode the store was opened in.
func (s *Store) Mode() Mode {
	return s.mode
}

// CreateProfile creates a profile in multi-profile mode.
func (s *Store) CreateProfile(displayName string, prefs entities.ProfilePreferences) (*Profile, error) {
	if s.mode == ModeAnonymous {
		return nil, ErrAnonymousEnabled
	}
	name, err := normalizeDisplayName(displayName)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findByDisplayNameLocked(name) != nil {
		return nil, fmt.Errorf("%w: %s", ErrDisplayNameUsed, name)
	}

	p, err := s.create(s.nextID(), name, prefs)
	if err != nil {
		return nil, err
	}
	s.profiles[p.id] = p
	return p, nil
}

// DeleteProfile removes a profile and its directory. The current profile cannot be deleted.
func (s *Store) DeleteProfile(id ID) error {
	if s.mode == ModeAnonymous {
		return ErrAnonymousEnabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNonexistentProfile, id)
	}
	if s.current == p {
		return fmt.Errorf("%w: %d", ErrProfileIsCurrent, id)
	}

	graveyard := p.dir + deletedSuffix
	if err := os.Rename(p.dir, graveyard); err != nil {
		return fmt.Errorf("%w: delete profile %d: %w", ErrIO, id, err)
	}
	delete(s.profiles, id)

	if err := p.accounts.Close(); err != nil {
		log.Printf("[PROFILES] closing accounts of deleted profile %d: %v", id, err)
	}
	if err := os.RemoveAll(graveyard); err != nil {
		log.Printf("[PROFILES] orphaned directory %s left behind: %v", graveyard, err)
		return fmt.Errorf("%w: remove profile %d directory: %w", ErrIO, id, err)
	}

	log.Printf("[PROFILES] deleted profile %d", id)
	return nil
}

// SetCurrent selects the current profile. The selection is not persisted.
func (s *Store) SetCurrent(id ID) error {
	if s.mode == ModeAnonymous {
		return ErrAnonymousEnabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNonexistentProfile, id)
	}
	s.current = p
	return nil
}

// Current returns the current profile.
func (s *Store) Current() (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, ErrNoCurrentProfile
	}
	return s.current, nil
}

// Anonymous returns the anonymous profile.
func (s *Store) Anonymous() (*Profile, error) {
	if s.mode != ModeAnonymous {
		return nil, ErrAnonymousDisabled
	}
	return s.ProfileByID(AnonymousProfileID)
}

// Profiles returns every profile ordered by ID.
func (s *Store) Profiles() []*Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (s *Store) ProfileByID(id ID) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNonexistentProfile, id)
	}
	return p, nil
}

// FindByDisplayName returns the profile with the given display name.
func (s *Store) FindByDisplayName(name string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.findByDisplayNameLocked(strings.TrimSpace(name)); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNonexistentProfile, name)
}

func (s *Store) findByDisplayNameLocked(name string) *Profile {
	for _, p := range s.profiles {
		if p.DisplayName() == name {
			return p
		}
	}
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

// Close closes the account stores of every profile.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, p := range s.profiles {
		if err := p.accounts.Close(); err != nil {
			errs = append(errs, fmt.Errorf("profile %d: %w", p.id, err))
		}
	}
	return errors.Join(errs...)
}

// nextID is one more than the highest ID in use. ID 0 is never handed out in
// multi-profile mode. Callers hold mu.
func (s *Store) nextID() ID {
	next := AnonymousProfileID + 1
	for id := range s.profiles {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

func (s *Store) profileDir(id ID) string {
	return filepath.Join(s.dir, strconv.Itoa(int(id)))
}
