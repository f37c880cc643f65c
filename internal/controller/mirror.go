package controller

import (
	"log"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/database/books"
	"github.com/mrlokans/patron/internal/registry"
)

// The registry is keyed by book ID, so two accounts of the current profile may hold the
// same book. The record then points at whichever account wrote it last, and a book only
// leaves the registry once no account of the current profile holds it.
//
// Helpers suffixed Locked expect registryMu to be held by the caller.

// ownsLocked reports whether account is in the current profile and the registered
// record for id belongs to it.
func (c *Controller) ownsLocked(account *accounts.Account, id string) bool {
	if !c.active(account) {
		return false
	}
	rec, ok := c.registry.Book(id)
	return ok && rec.Book.AccountID == int(account.ID())
}

// register publishes book when account belongs to the current profile.
func (c *Controller) register(account *accounts.Account, book registry.Book) {
	c.registryMu.RLock()
	defer c.registryMu.RUnlock()
	if c.active(account) {
		c.registry.Update(book)
	}
}

// registerMissing registers a stored entry that the registry does not know yet.
func (c *Controller) registerMissing(account *accounts.Account, entry *books.Entry) {
	c.registryMu.RLock()
	defer c.registryMu.RUnlock()
	if !c.active(account) {
		return
	}
	if _, ok := c.registry.Book(entry.ID); ok {
		return
	}
	if book, err := registry.BookFromEntry(entry); err == nil {
		c.registry.Update(book)
	}
}

// setStatus moves a book through an in-flight status, but only the record account owns.
func (c *Controller) setStatus(account *accounts.Account, id string, status registry.Status) {
	c.registryMu.RLock()
	defer c.registryMu.RUnlock()
	if c.ownsLocked(account, id) {
		c.registry.UpdateStatus(id, status)
	}
}

func (c *Controller) forget(account *accounts.Account, id string) {
	c.registryMu.RLock()
	defer c.registryMu.RUnlock()
	c.forgetLocked(account, id)
}

// forgetLocked drops account's claim on id. When another account of the current profile
// still holds the book, the record is handed to that account instead of being removed.
func (c *Controller) forgetLocked(account *accounts.Account, id string) {
	if !c.ownsLocked(account, id) {
		return
	}
	if book, ok := c.otherHolder(account, id); ok {
		c.registry.Update(book)
		return
	}
	c.registry.Remove(id)
}

func (c *Controller) otherHolder(account *accounts.Account, id string) (registry.Book, bool) {
	if c.profiles == nil {
		return registry.Book{}, false
	}
	p, err := c.profiles.Current()
	if err != nil {
		return registry.Book{}, false
	}
	for _, other := range p.Accounts().Accounts() {
		if other == account {
			continue
		}
		entry, err := other.Books().Entry(id)
		if err != nil {
			continue
		}
		book, err := registry.BookFromEntry(entry)
		if err != nil {
			log.Printf("[REGISTRY] skipping unreadable copy of %s in account %d: %v", id, other.ID(), err)
			continue
		}
		return book, true
	}
	return registry.Book{}, false
}
