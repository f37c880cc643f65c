package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/patron/internal/entities"
)

func TestActivateProfile_ReplacesRegisteredBooks(t *testing.T) {
	f := newFixture(t)
	kermit, kermitAccount := f.kermit(t)
	_, _, err := kermitAccount.Books().Put(loaned("a"))
	require.NoError(t, err)
	_, err = f.ctrl.ActivateProfile(kermit)
	require.NoError(t, err)
	require.Equal(t, 1, f.registry.Len())

	gonzo, err := f.profiles.CreateProfile("Gonzo", entities.ProfilePreferences{})
	require.NoError(t, err)
	gonzoAccount, err := gonzo.Accounts().AccountByProvider(libraryID)
	require.NoError(t, err)
	_, _, err = gonzoAccount.Books().Put(loaned("b"))
	require.NoError(t, err)
	_, _, err = gonzoAccount.Books().Put(loaned("c"))
	require.NoError(t, err)

	n, err := f.ctrl.ActivateProfile(gonzo)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok := f.registry.Book("a")
	assert.False(t, ok)
	_, ok = f.registry.Book("b")
	assert.True(t, ok)
	assert.Equal(t, 2, f.registry.Len())
}

func TestBooksSync_OtherProfileDoesNotTouchRegistry(t *testing.T) {
	f := newFixture(t)
	f.kermit(t)

	gonzo, err := f.profiles.CreateProfile("Gonzo", entities.ProfilePreferences{})
	require.NoError(t, err)
	account, err := gonzo.Accounts().AccountByProvider(libraryID)
	require.NoError(t, err)
	setCredentials(t, account)
	f.transport.respondFeed(t, loansURI, loaned("g"))

	result, err := f.ctrl.BooksSync(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, []string{"g"}, result.Added)

	ids, err := account.Books().IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"g"}, ids)
	assert.Zero(t, f.registry.Len())
}
