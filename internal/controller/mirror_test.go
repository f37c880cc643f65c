package controller

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/entities"
	"github.com/mrlokans/patron/internal/profiles"
	"github.com/mrlokans/patron/internal/registry"
)

func registeredIDs(r *registry.Registry) []string {
	var ids []string
	for _, rec := range r.Books() {
		ids = append(ids, rec.Book.ID)
	}
	return ids
}

// gonzo creates a second profile, not current, whose library account holds ids.
func (f *fixture) gonzo(t *testing.T, ids ...string) (*profiles.Profile, *accounts.Account) {
	t.Helper()
	p, err := f.profiles.CreateProfile("Gonzo", entities.ProfilePreferences{})
	require.NoError(t, err)
	account, err := p.Accounts().AccountByProvider(libraryID)
	require.NoError(t, err)
	for _, id := range ids {
		_, _, err := account.Books().Put(loaned(id))
		require.NoError(t, err)
	}
	return p, account
}

func TestBooksSync_SharedBookStaysWhileAnotherAccountHoldsIt(t *testing.T) {
	tests := []struct {
		name        string
		libraryLast bool
	}{
		{"open account registered last", false},
		{"library account registered last", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			p, library := f.kermit(t)
			setCredentials(t, library)
			open, err := p.Accounts().CreateAccount(mustProvider(t, f, openID))
			require.NoError(t, err)

			f.transport.respondFeed(t, loansURI, loaned("x"))
			f.transport.respondFeed(t, openFeed, loaned("x"))
			order := []*accounts.Account{library, open}
			if tt.libraryLast {
				order = []*accounts.Account{open, library}
			}
			for _, a := range order {
				_, err := f.ctrl.BooksSync(ctx, a)
				require.NoError(t, err)
			}

			f.transport.respondFeed(t, loansURI)
			result, err := f.ctrl.BooksSync(ctx, library)
			require.NoError(t, err)
			assert.Equal(t, []string{"x"}, result.Removed)

			rec, err := f.registry.BookOrError("x")
			require.NoError(t, err)
			assert.Equal(t, int(open.ID()), rec.Book.AccountID)
			assert.Equal(t, registry.StatusLoaned, rec.Status)

			events, cancel := f.registry.Subscribe(8)
			defer cancel()
			f.transport.respondFeed(t, openFeed)
			_, err = f.ctrl.BooksSync(ctx, open)
			require.NoError(t, err)
			assert.Zero(t, f.registry.Len())

			got := drain(events)
			require.Len(t, got, 1)
			assert.Equal(t, registry.EventBookRemoved, got[0].Kind)
		})
	}
}

func TestBookDelete_SharedBookFallsBackToOtherAccount(t *testing.T) {
	f := newFixture(t)
	p, library := f.kermit(t)
	open, err := p.Accounts().CreateAccount(mustProvider(t, f, openID))
	require.NoError(t, err)
	for _, a := range []*accounts.Account{open, library} {
		_, _, err := a.Books().Put(loaned("x"))
		require.NoError(t, err)
		_, err = f.ctrl.LoadAccount(a)
		require.NoError(t, err)
	}

	require.NoError(t, f.ctrl.BookDelete(library, "x"))
	rec, err := f.registry.BookOrError("x")
	require.NoError(t, err)
	assert.Equal(t, int(open.ID()), rec.Book.AccountID)

	require.NoError(t, f.ctrl.Logout(open))
	assert.Zero(t, f.registry.Len())
}

func TestBookOperations_OtherProfileDoesNotTouchRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, kermit := f.kermit(t)
	_, _, err := kermit.Books().Put(loaned("a"))
	require.NoError(t, err)
	_, err = f.ctrl.LoadAccount(kermit)
	require.NoError(t, err)

	_, other := f.gonzo(t, "a", "g")

	err = f.ctrl.BookRevoke(ctx, other, "g")
	assert.Equal(t, FailureLocalPrecondition, KindOf(err))
	err = f.ctrl.BookRevoke(ctx, other, "a")
	assert.Equal(t, FailureLocalPrecondition, KindOf(err))

	f.transport.respond("http://library.example/content/g", http.StatusOK, []byte("epub"))
	require.NoError(t, f.ctrl.BookDownload(ctx, other, "g"))

	assert.Equal(t, []string{"a"}, registeredIDs(f.registry))
	rec, _ := f.registry.Book("a")
	assert.Equal(t, registry.StatusLoaned, rec.Status)
	assert.Equal(t, int(kermit.ID()), rec.Book.AccountID)

	require.NoError(t, f.registry.UpdateStatus("a", registry.StatusRevokeFailed))
	require.NoError(t, f.ctrl.BookRevokeFailedDismiss(other, "a"))
	rec, _ = f.registry.Book("a")
	assert.Equal(t, registry.StatusRevokeFailed, rec.Status)

	require.NoError(t, f.ctrl.BookDelete(other, "a"))
	assert.Equal(t, []string{"a"}, registeredIDs(f.registry))

	require.NoError(t, f.ctrl.BookRevokeFailedDismiss(kermit, "a"))
	rec, _ = f.registry.Book("a")
	assert.Equal(t, registry.StatusLoaned, rec.Status)
}

func TestActivateProfile_WaitsForInFlightSyncs(t *testing.T) {
	f := newFixture(t)
	_, kermit := f.kermit(t)
	setCredentials(t, kermit)
	f.transport.respondFeed(t, loansURI, loaned("k1"), loaned("k2"))
	gonzo, other := f.gonzo(t, "g")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_, _ = f.ctrl.BooksSync(context.Background(), kermit)
			}
		}()
	}

	require.NoError(t, f.profiles.SetCurrent(gonzo.ID()))
	_, err := f.ctrl.ActivateProfile(gonzo)
	require.NoError(t, err)
	wg.Wait()

	assert.Equal(t, []string{"g"}, registeredIDs(f.registry))
	rec, _ := f.registry.Book("g")
	assert.Equal(t, int(other.ID()), rec.Book.AccountID)
}
