// Package accounts manages the accounts that belong to one profile.
//
// Each account lives in a directory named by its integer ID:
//
//	<accounts>/
//	└── <id>/
//	    ├── account.json      {provider, credentials?}
//	    ├── account.json.tmp  transient write target
//	    ├── lock
//	    └── books/            book collection
//
// A store never holds two accounts for the same provider and refuses to delete its last
// account.
package accounts

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

	"github.com/mrlokans/patron/internal/database/books"
	"github.com/mrlokans/patron/internal/entities"
	"github.com/mrlokans/patron/internal/persistence"
)

const (
	documentName   = "account.json"
	booksDirName   = "books"
	deletedSuffix  = ".deleted"
	directoryPerms = 0755
)

// ProviderLookup resolves provider URIs stored in account documents.
type ProviderLookup interface {
	ProviderByID(id string) (entities.ProviderDescription, bool)
}

// Config holds the collaborators of a Store.
type Config struct {
	Directory    string
	Providers    ProviderLookup
	BookDatabase books.Opener
	LockTimeout  time.Duration
}

// Store is the set of accounts in one profile directory.
type Store struct {
	dir         string
	providers   ProviderLookup
	bookDB      books.Opener
	lockTimeout time.Duration

	mu         sync.Mutex
	accounts   map[ID]*Account     // guarded by mu
	byProvider map[string]*Account // guarded by mu
}

// Open loads every account under cfg.Directory, creating the directory if needed.
// Failures are collected per account; if any account failed the whole open fails with
// an *OpenError so callers never operate on an incomplete set.
func Open(cfg Config) (*Store, error) {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = persistence.DefaultLockTimeout
	}
	if err := os.MkdirAll(cfg.Directory, directoryPerms); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrIO, cfg.Directory, err)
	}

	s := &Store{
		dir:         cfg.Directory,
		providers:   cfg.Providers,
		bookDB:      cfg.BookDatabase,
		lockTimeout: cfg.LockTimeout,
		accounts:    make(map[ID]*Account),
		byProvider:  make(map[string]*Account),
	}

	entries, err := os.ReadDir(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrIO, cfg.Directory, err)
	}

	var causes []error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()

		if strings.HasSuffix(name, deletedSuffix) {
			// Left behind by a delete that could not finish.
			if err := os.RemoveAll(filepath.Join(cfg.Directory, name)); err != nil {
				log.Printf("[ACCOUNTS] could not remove deleted account directory %s: %v", name, err)
			}
			continue
		}

		n, err := strconv.Atoi(name)
		if err != nil || n < 0 {
			log.Printf("[ACCOUNTS] ignoring non-account directory %s", filepath.Join(cfg.Directory, name))
			continue
		}

		account, err := s.load(ID(n))
		if err != nil {
			causes = append(causes, err)
			continue
		}
		if existing, dup := s.byProvider[account.provider.ID]; dup {
			causes = append(causes, fmt.Errorf("%w: accounts %d and %d both use %s",
				ErrDuplicateProvider, existing.id, account.id, account.provider.ID))
			account.books.Close()
			continue
		}
		s.accounts[account.id] = account
		s.byProvider[account.provider.ID] = account
	}

	if len(causes) > 0 {
		s.Close()
		return nil, &OpenError{Directory: cfg.Directory, Causes: causes}
	}

	log.Printf("[ACCOUNTS] opened %d accounts in %s", len(s.accounts), cfg.Directory)
	return s, nil
}

func (s *Store) load(id ID) (*Account, error) {
	dir := s.accountDir(id)
	paths := persistence.DocumentPaths(dir, documentName)

	data, err := paths.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: account %d: %w", ErrIO, id, err)
	}
	desc, err := decodeDescription(data)
	if err != nil {
		return nil, fmt.Errorf("account %d: %w", id, err)
	}
	provider, ok := s.providers.ProviderByID(desc.Provider)
	if !ok {
		return nil, fmt.Errorf("account %d: unknown provider %s", id, desc.Provider)
	}

	collection, err := s.bookDB.Open(int(id), filepath.Join(dir, booksDirName))
	if err != nil {
		return nil, fmt.Errorf("%w: account %d: %w", ErrIO, id, err)
	}

	return &Account{
		id:          id,
		dir:         dir,
		provider:    provider,
		books:       collection,
		document:    paths,
		lockTimeout: s.lockTimeout,
		description: desc,
	}, nil
}

// Directory is the directory holding the store's accounts.
func (s *Store) Directory() string {
	return s.dir
}

// CreateAccount creates an account for provider with no credentials.
func (s *Store) CreateAccount(provider entities.ProviderDescription) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byProvider[provider.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, provider.ID)
	}

	id := s.nextID()
	dir := s.accountDir(id)
	if err := os.MkdirAll(filepath.Join(dir, booksDirName), directoryPerms); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: create account directory: %w", ErrIO, err)
	}

	account := &Account{
		id:          id,
		dir:         dir,
		provider:    provider,
		document:    persistence.DocumentPaths(dir, documentName),
		lockTimeout: s.lockTimeout,
		description: Description{Provider: provider.ID},
	}
	if err := account.write(account.description); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	collection, err := s.bookDB.Open(int(id), filepath.Join(dir, booksDirName))
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: open book collection: %w", ErrIO, err)
	}
	account.books = collection

	s.accounts[id] = account
	s.byProvider[provider.ID] = account
	log.Printf("[ACCOUNTS] created account %d for %s", id, provider.ID)
	return account, nil
}

// DeleteAccountByProvider deletes the account for providerID and returns its ID.
//
// The directory is first renamed aside; if that fails nothing changes. Once renamed the
// account is gone from the store even if removing the renamed tree fails, in which case
// ErrIO is returned and the next Open cleans it up.
func (s *Store) DeleteAccountByProvider(providerID string) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.byProvider[providerID]
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrNonexistentProvider, providerID)
	}
	if len(s.accounts) == 1 {
		return 0, fmt.Errorf("%w: %s", ErrLastAccount, providerID)
	}

	graveyard := account.dir + deletedSuffix
	if err := os.Rename(account.dir, graveyard); err != nil {
		return 0, fmt.Errorf("%w: delete account %d: %w", ErrIO, account.id, err)
	}

	delete(s.accounts, account.id)
	delete(s.byProvider, providerID)

	if err := account.books.Close(); err != nil {
		log.Printf("[ACCOUNTS] closing books of deleted account %d: %v", account.id, err)
	}
	if err := os.RemoveAll(graveyard); err != nil {
		log.Printf("[ACCOUNTS] orphaned directory %s left behind: %v", graveyard, err)
		return account.id, fmt.Errorf("%w: remove account %d directory: %w", ErrIO, account.id, err)
	}

	log.Printf("[ACCOUNTS] deleted account %d for %s", account.id, providerID)
	return account.id, nil
}

// Accounts returns every account ordered by ID.
func (s *Store) Accounts() []*Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// AccountByID returns the account with the given ID.
func (s *Store) AccountByID(id ID) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNonexistentAccount, id)
	}
	return a, nil
}

// AccountByProvider returns the account for a provider URI.
func (s *Store) AccountByProvider(providerID string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byProvider[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNonexistentProvider, providerID)
	}
	return a, nil
}

// First returns the account with the lowest ID.
func (s *Store) First() (*Account, error) {
	accounts := s.Accounts()
	if len(accounts) == 0 {
		return nil, ErrNonexistentAccount
	}
	return accounts[0], nil
}

// Len returns the number of accounts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// Close closes every account's book collection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, a := range s.accounts {
		if a.books == nil {
			continue
		}
		if err := a.books.Close(); err != nil {
			errs = append(errs, fmt.Errorf("account %d: %w", a.id, err))
		}
	}
	return errors.Join(errs...)
}

// nextID is one more than the highest ID in use, or 0. Callers hold mu.
func (s *Store) nextID() ID {
	next := ID(0)
	for id := range s.accounts {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

func (s *Store) accountDir(id ID) string {
	return filepath.Join(s.dir, strconv.Itoa(int(id)))
}
