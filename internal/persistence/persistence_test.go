package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDocument_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	paths := DocumentPaths(dir, "account.json")

	err := WriteDocument(paths.Lock, paths.Target, paths.Tmp, []byte(`{"provider":"urn:a"}`))
	require.NoError(t, err)

	data, err := paths.Read()
	require.NoError(t, err)
	assert.Equal(t, `{"provider":"urn:a"}`, string(data))

	_, err = os.Stat(paths.Tmp)
	assert.True(t, os.IsNotExist(err), "temp file should not remain after a write")
}

func TestWriteDocument_Overwrites(t *testing.T) {
	dir := t.TempDir()
	paths := DocumentPaths(dir, "profile.json")

	require.NoError(t, paths.Write([]byte("first"), time.Second))
	require.NoError(t, paths.Write([]byte("second"), time.Second))

	data, err := ReadDocument(paths.Target)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestWriteDocument_LockTimeout(t *testing.T) {
	dir := t.TempDir()
	paths := DocumentPaths(dir, "account.json")

	holder := flock.New(paths.Lock)
	locked, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer holder.Unlock()

	start := time.Now()
	err = paths.Write([]byte("blocked"), 100*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	_, err = os.Stat(paths.Target)
	assert.True(t, os.IsNotExist(err), "target must not be written without the lock")
	_, err = os.Stat(paths.Tmp)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteDocument_LockReleasedAfterWrite(t *testing.T) {
	dir := t.TempDir()
	paths := DocumentPaths(dir, "account.json")

	require.NoError(t, paths.Write([]byte("one"), time.Second))

	other := flock.New(paths.Lock)
	locked, err := other.TryLock()
	require.NoError(t, err)
	assert.True(t, locked, "lock should be free once the write returns")
	require.NoError(t, other.Unlock())
}

func TestWriteDocument_RenameFailureRemovesTemp(t *testing.T) {
	dir := t.TempDir()
	paths := DocumentPaths(dir, "account.json")

	// A non-empty directory at the target path makes the rename fail.
	require.NoError(t, os.MkdirAll(filepath.Join(paths.Target, "child"), 0755))

	err := paths.Write([]byte("data"), time.Second)
	require.Error(t, err)

	_, err = os.Stat(paths.Tmp)
	assert.True(t, os.IsNotExist(err), "temp file should be cleaned up after a failed rename")
}

func TestWriteDocument_ConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	paths := DocumentPaths(dir, "account.json")

	const writers = 16
	values := make(map[string]bool, writers)
	for i := 0; i < writers; i++ {
		values[fmt.Sprintf(`{"writer":%d,"padding":"%0512d"}`, i, i)] = true
	}

	var wg sync.WaitGroup
	for v := range values {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			assert.NoError(t, paths.Write([]byte(v), 5*time.Second))
		}(v)
	}
	wg.Wait()

	data, err := paths.Read()
	require.NoError(t, err)
	assert.True(t, values[string(data)], "document must equal exactly one submitted value")

	_, err = os.Stat(paths.Tmp)
	assert.True(t, os.IsNotExist(err))
}

func TestReadDocument_Missing(t *testing.T) {
	_, err := ReadDocument(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
