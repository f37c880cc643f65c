package books

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/patron/internal/feed"
)

func setupTestCollection(t *testing.T) (Collection, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "books")

	collection, err := NewSQLiteDatabase(logger.Silent).Open(7, dir)
	require.NoError(t, err)
	t.Cleanup(func() { collection.Close() })

	return collection, dir
}

func loanedEntry(id, title string) feed.Entry {
	return feed.Entry{
		ID:             id,
		Title:          title,
		RevokeURI:      "https://example.org/revoke/" + id,
		AcquisitionURI: "https://example.org/fulfill/" + id,
		Availability:   feed.Availability{Kind: feed.AvailabilityLoaned},
	}
}

func TestRepository_PutCreatesAndUpdates(t *testing.T) {
	collection, _ := setupTestCollection(t)

	entry, created, err := collection.Put(loanedEntry("urn:b:1", "First"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 7, entry.AccountID)
	assert.Equal(t, feed.AvailabilityLoaned, entry.Availability)

	updated := loanedEntry("urn:b:1", "First (revised)")
	updated.Availability.Kind = feed.AvailabilityHeld
	entry, created, err = collection.Put(updated)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "First (revised)", entry.Title)

	stored, err := collection.Entry("urn:b:1")
	require.NoError(t, err)
	fe, err := stored.FeedEntry()
	require.NoError(t, err)
	assert.Equal(t, "First (revised)", fe.Title)
	assert.Equal(t, feed.AvailabilityHeld, fe.Availability.Kind)
}

func TestRepository_IDsAndEntries(t *testing.T) {
	collection, _ := setupTestCollection(t)

	for _, id := range []string{"urn:b:3", "urn:b:1", "urn:b:2"} {
		_, _, err := collection.Put(loanedEntry(id, id))
		require.NoError(t, err)
	}

	ids, err := collection.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:b:1", "urn:b:2", "urn:b:3"}, ids)

	entries, err := collection.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRepository_EntryNotFound(t *testing.T) {
	collection, _ := setupTestCollection(t)

	_, err := collection.Entry("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = collection.Delete("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_Content(t *testing.T) {
	collection, _ := setupTestCollection(t)

	_, _, err := collection.Put(loanedEntry("urn:b:1", "First"))
	require.NoError(t, err)

	entry, err := collection.SetContent("urn:b:1", []byte("epub bytes"))
	require.NoError(t, err)
	require.True(t, entry.Downloaded())

	data, err := os.ReadFile(entry.ContentPath)
	require.NoError(t, err)
	assert.Equal(t, "epub bytes", string(data))

	// Replacing the entry from a feed keeps the downloaded content.
	entry, _, err = collection.Put(loanedEntry("urn:b:1", "First"))
	require.NoError(t, err)
	assert.True(t, entry.Downloaded())

	path := entry.ContentPath
	entry, err = collection.DeleteContent("urn:b:1")
	require.NoError(t, err)
	assert.False(t, entry.Downloaded())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Deleting content twice is harmless.
	_, err = collection.DeleteContent("urn:b:1")
	assert.NoError(t, err)
}

func TestRepository_DeleteRemovesContent(t *testing.T) {
	collection, _ := setupTestCollection(t)

	_, _, err := collection.Put(loanedEntry("urn:b:1", "First"))
	require.NoError(t, err)
	entry, err := collection.SetContent("urn:b:1", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, collection.Delete("urn:b:1"))

	_, err = os.Stat(entry.ContentPath)
	assert.True(t, os.IsNotExist(err))
	_, err = collection.Entry("urn:b:1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteDatabase_ReopenPersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "books")
	opener := NewSQLiteDatabase(logger.Silent)

	collection, err := opener.Open(1, dir)
	require.NoError(t, err)
	_, _, err = collection.Put(loanedEntry("urn:b:1", "First"))
	require.NoError(t, err)
	require.NoError(t, collection.Close())

	reopened, err := opener.Open(1, dir)
	require.NoError(t, err)
	defer reopened.Close()

	ids, err := reopened.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:b:1"}, ids)
	assert.Equal(t, dir, reopened.Directory())
	assert.Equal(t, 1, reopened.AccountID())
}
