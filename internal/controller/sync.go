package controller

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/feed"
	"github.com/mrlokans/patron/internal/registry"
)

// SyncResult summarizes one sync. EntryErrors holds per-book failures that did not stop
// the rest of the sync.
type SyncResult struct {
	Skipped     bool
	Added       []string
	Updated     []string
	Removed     []string
	EntryErrors []error
}

// Err joins the per-entry errors, or returns nil if every entry succeeded.
func (r *SyncResult) Err() error {
	return errors.Join(r.EntryErrors...)
}

type syncOptions struct {
	age int
}

// SyncOption adjusts a sync.
type SyncOption func(*syncOptions)

// WithAge picks the age-bracketed catalog for providers without a loans feed.
func WithAge(age int) SyncOption {
	return func(o *syncOptions) {
		o.age = age
	}
}

// BooksSync fetches the account's loans feed and makes the account's collection and
// the registry match it. Syncs of one account are serialized.
//
// Accounts that need credentials but have none are skipped without a request. A 401
// clears the stored credentials before FailureCredentialsIncorrect is returned.
func (c *Controller) BooksSync(ctx context.Context, account *accounts.Account, opts ...SyncOption) (*SyncResult, error) {
	o := syncOptions{age: -1}
	for _, opt := range opts {
		opt(&o)
	}

	lock := c.syncLock(account)
	lock.Lock()
	defer lock.Unlock()

	provider := account.Provider()
	if account.RequiresCredentials() {
		if _, ok := account.Credentials(); !ok {
			log.Printf("[SYNC] %s has no credentials, skipping", describeAccount(account))
			return &SyncResult{Skipped: true}, nil
		}
	}

	uri := provider.SyncURI(o.age)
	if uri == "" {
		return nil, failure(FailureLocalPrecondition, nil, "%s has nothing to sync", describeAccount(account))
	}

	resp, err := c.fetch(ctx, uri, authFor(account))
	if err != nil {
		if KindOf(err) == FailureCredentialsIncorrect {
			if clearErr := account.SetCredentials(nil); clearErr != nil {
				log.Printf("[SYNC] failed to clear rejected credentials of %s: %v", describeAccount(account), clearErr)
			} else {
				log.Printf("[SYNC] cleared rejected credentials of %s", describeAccount(account))
			}
		}
		return nil, err
	}

	f, err := c.parse("sync", account, uri, resp)
	if err != nil {
		return nil, err
	}

	result := c.apply(account, f)
	log.Printf("[SYNC] %s: %d added, %d updated, %d removed, %d errors",
		describeAccount(account), len(result.Added), len(result.Updated), len(result.Removed), len(result.EntryErrors))
	return result, nil
}

// apply diffs f against the account's collection. The registry follows only when the
// account belongs to the current profile.
func (c *Controller) apply(account *accounts.Account, f *feed.Feed) *SyncResult {
	c.registryMu.RLock()
	defer c.registryMu.RUnlock()

	result := &SyncResult{}
	collection := account.Books()
	active := c.active(account)

	remote := make(map[string]bool, len(f.Entries))
	for _, fe := range f.Entries {
		remote[fe.ID] = true

		stored, created, err := collection.Put(fe)
		if err != nil {
			result.EntryErrors = append(result.EntryErrors, fmt.Errorf("store %s: %w", fe.ID, err))
			continue
		}
		book, err := registry.BookFromEntry(stored)
		if err != nil {
			result.EntryErrors = append(result.EntryErrors, fmt.Errorf("register %s: %w", fe.ID, err))
			continue
		}
		if active {
			c.registry.Update(book)
		}

		if created {
			result.Added = append(result.Added, fe.ID)
		} else {
			result.Updated = append(result.Updated, fe.ID)
		}
	}

	local, err := collection.IDs()
	if err != nil {
		result.EntryErrors = append(result.EntryErrors, fmt.Errorf("list local books: %w", err))
		return result
	}
	for _, id := range local {
		if remote[id] {
			continue
		}
		if err := collection.Delete(id); err != nil {
			result.EntryErrors = append(result.EntryErrors, fmt.Errorf("delete %s: %w", id, err))
			continue
		}
		c.forgetLocked(account, id)
		result.Removed = append(result.Removed, id)
	}

	return result
}
