package controller

import (
	"context"
	"errors"
	"log"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/database/books"
	"github.com/mrlokans/patron/internal/registry"
)

// storedBook loads a book from the account's collection and, for accounts of the
// current profile, makes sure the registry knows about it.
func (c *Controller) storedBook(account *accounts.Account, bookID string) (*books.Entry, error) {
	entry, err := account.Books().Entry(bookID)
	if err != nil {
		kind := FailureGeneral
		if errors.Is(err, books.ErrNotFound) {
			kind = FailureLocalPrecondition
		}
		return nil, failure(kind, err, "book %s of %s", bookID, describeAccount(account))
	}
	c.registerMissing(account, entry)
	return entry, nil
}

// BookRevoke returns a loan or cancels a hold. Missing credentials or a missing revoke
// URI fail without a request. Every failure leaves the book in StatusRevokeFailed until
// it is dismissed; on success the returned entry becomes the book's new state.
func (c *Controller) BookRevoke(ctx context.Context, account *accounts.Account, bookID string) error {
	entry, err := c.storedBook(account, bookID)
	if err != nil {
		return err
	}

	revokeFailed := func(f *Failure) error {
		c.setStatus(account, bookID, registry.StatusRevokeFailed)
		log.Printf("[SYNC] revoke of %s failed: %v", bookID, f)
		return f
	}

	if _, ok := account.Credentials(); !ok {
		return revokeFailed(failure(FailureLocalPrecondition, nil, "%s has no credentials", describeAccount(account)))
	}
	if entry.RevokeURI == "" {
		return revokeFailed(failure(FailureLocalPrecondition, nil, "book %s has no revoke link", bookID))
	}

	c.setStatus(account, bookID, registry.StatusRevokeInProgress)

	resp, err := c.fetch(ctx, entry.RevokeURI, authFor(account))
	if err != nil {
		return revokeFailed(err.(*Failure))
	}
	f, err := c.parse("revoke", account, entry.RevokeURI, resp)
	if err != nil {
		return revokeFailed(err.(*Failure))
	}
	if len(f.Entries) == 0 {
		return revokeFailed(failure(FailureGeneral, nil, "revoke of %s returned an empty feed", bookID))
	}

	fe := f.Entries[0]
	fe.ID = bookID
	stored, _, err := account.Books().Put(fe)
	if err != nil {
		return revokeFailed(failure(FailureGeneral, err, "store revoked book %s", bookID))
	}
	if stored.Downloaded() && !fe.Availability.Kind.OnLoan() {
		if stored, err = account.Books().DeleteContent(bookID); err != nil {
			return revokeFailed(failure(FailureGeneral, err, "remove content of revoked book %s", bookID))
		}
	}

	book, err := registry.BookFromEntry(stored)
	if err != nil {
		return revokeFailed(failure(FailureGeneral, err, "register revoked book %s", bookID))
	}
	c.register(account, book)
	log.Printf("[SYNC] revoked %s, now %s", bookID, registry.StatusFromBook(book))
	return nil
}

// BookRevokeFailedDismiss puts a book whose revoke failed back into the status it had
// before the revoke. Books in any other status, or registered to another account, are
// left alone.
func (c *Controller) BookRevokeFailedDismiss(account *accounts.Account, bookID string) error {
	c.registryMu.RLock()
	defer c.registryMu.RUnlock()

	if !c.ownsLocked(account, bookID) {
		return nil
	}
	rec, ok := c.registry.Book(bookID)
	if !ok || rec.Status != registry.StatusRevokeFailed {
		return nil
	}
	if _, err := c.registry.Restore(bookID); err != nil {
		return failure(FailureGeneral, err, "dismiss revoke failure of %s", bookID)
	}
	return nil
}

// BookDelete removes a book's local entry, its downloaded content and its registry
// entry. It never contacts the provider and succeeds for unknown books.
func (c *Controller) BookDelete(account *accounts.Account, bookID string) error {
	if err := account.Books().Delete(bookID); err != nil && !errors.Is(err, books.ErrNotFound) {
		return failure(FailureGeneral, err, "delete book %s of %s", bookID, describeAccount(account))
	}
	c.forget(account, bookID)
	return nil
}

// BookDownload fetches the book's content and stores it in the account's collection.
func (c *Controller) BookDownload(ctx context.Context, account *accounts.Account, bookID string) error {
	entry, err := c.storedBook(account, bookID)
	if err != nil {
		return err
	}
	if entry.AcquisitionURI == "" {
		return failure(FailureLocalPrecondition, nil, "book %s has no acquisition link", bookID)
	}

	downloadFailed := func(f *Failure) error {
		c.setStatus(account, bookID, registry.StatusDownloadFailed)
		log.Printf("[SYNC] download of %s failed: %v", bookID, f)
		return f
	}

	c.setStatus(account, bookID, registry.StatusDownloading)

	resp, err := c.fetch(ctx, entry.AcquisitionURI, authFor(account))
	if err != nil {
		return downloadFailed(err.(*Failure))
	}
	stored, err := account.Books().SetContent(bookID, resp.Body)
	if err != nil {
		return downloadFailed(failure(FailureGeneral, err, "store content of %s", bookID))
	}

	book, err := registry.BookFromEntry(stored)
	if err != nil {
		return downloadFailed(failure(FailureGeneral, err, "register downloaded book %s", bookID))
	}
	c.register(account, book)
	log.Printf("[SYNC] downloaded %s (%d bytes)", bookID, len(resp.Body))
	return nil
}
