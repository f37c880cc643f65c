package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/controller"
	"github.com/mrlokans/patron/internal/entities"
	"github.com/mrlokans/patron/internal/profiles"
)

type fakeOperations struct {
	resolveErr error
	opErr      error
	syncResult *controller.SyncResult

	resolved []string
	calls    []string
	creds    entities.Credentials
}

func (f *fakeOperations) ResolveAccount(profileID profiles.ID, accountID accounts.ID) (*profiles.Profile, *accounts.Account, error) {
	f.resolved = append(f.resolved, "resolve")
	if f.resolveErr != nil {
		return nil, nil, f.resolveErr
	}
	return nil, &accounts.Account{}, nil
}

func (f *fakeOperations) BooksSync(ctx context.Context, account *accounts.Account, opts ...controller.SyncOption) (*controller.SyncResult, error) {
	f.calls = append(f.calls, "sync")
	if f.opErr != nil {
		return nil, f.opErr
	}
	if f.syncResult != nil {
		return f.syncResult, nil
	}
	return &controller.SyncResult{}, nil
}

func (f *fakeOperations) Login(ctx context.Context, account *accounts.Account, credentials entities.Credentials) error {
	f.calls = append(f.calls, "login")
	f.creds = credentials
	return f.opErr
}

func (f *fakeOperations) BookRevoke(ctx context.Context, account *accounts.Account, bookID string) error {
	f.calls = append(f.calls, "revoke "+bookID)
	return f.opErr
}

func (f *fakeOperations) BookDelete(account *accounts.Account, bookID string) error {
	f.calls = append(f.calls, "delete "+bookID)
	return f.opErr
}

func (f *fakeOperations) BookDownload(ctx context.Context, account *accounts.Account, bookID string) error {
	f.calls = append(f.calls, "download "+bookID)
	return f.opErr
}

func TestSyncAccountProcessor(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ops := &fakeOperations{syncResult: &controller.SyncResult{Added: []string{"a"}}}
		err := SyncAccountProcessor(ops)(context.Background(), SyncAccountTask{ProfileID: 1, AccountID: 0})
		require.NoError(t, err)
		assert.Equal(t, []string{"sync"}, ops.calls)
	})

	t.Run("network failure is retried", func(t *testing.T) {
		ops := &fakeOperations{opErr: &controller.Failure{Kind: controller.FailureNetwork, Message: "down"}}
		err := SyncAccountProcessor(ops)(context.Background(), SyncAccountTask{})
		assert.Error(t, err)
	})

	t.Run("credentials failure completes the task", func(t *testing.T) {
		ops := &fakeOperations{opErr: &controller.Failure{Kind: controller.FailureCredentialsIncorrect, Message: "401"}}
		err := SyncAccountProcessor(ops)(context.Background(), SyncAccountTask{})
		assert.NoError(t, err)
	})

	t.Run("unknown account completes the task", func(t *testing.T) {
		ops := &fakeOperations{resolveErr: &controller.Failure{Kind: controller.FailureProfileConfiguration, Message: "gone"}}
		err := SyncAccountProcessor(ops)(context.Background(), SyncAccountTask{})
		assert.NoError(t, err)
		assert.Empty(t, ops.calls)
	})

	t.Run("nil operations", func(t *testing.T) {
		err := SyncAccountProcessor(nil)(context.Background(), SyncAccountTask{})
		assert.Error(t, err)
	})
}

func TestLoginProcessor(t *testing.T) {
	ops := &fakeOperations{}
	err := LoginProcessor(ops)(context.Background(), LoginTask{Barcode: "1234", PIN: "abcd", OAuthToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "1234", ops.creds.Barcode)
	assert.Equal(t, "abcd", ops.creds.PIN)
	assert.Equal(t, "tok", ops.creds.OAuthToken)
}

func TestBookProcessors(t *testing.T) {
	ops := &fakeOperations{}
	task := BookTask{ProfileID: 1, AccountID: 2, BookID: "urn:book"}

	require.NoError(t, RevokeBookProcessor(ops)(context.Background(), RevokeBookTask{task}))
	require.NoError(t, DeleteBookProcessor(ops)(context.Background(), DeleteBookTask{task}))
	require.NoError(t, DownloadBookProcessor(ops)(context.Background(), DownloadBookTask{task}))
	assert.Equal(t, []string{"revoke urn:book", "delete urn:book", "download urn:book"}, ops.calls)

	ops.opErr = &controller.Failure{Kind: controller.FailureServer, Message: "502"}
	assert.Error(t, DownloadBookProcessor(ops)(context.Background(), DownloadBookTask{task}))

	ops.opErr = errors.New("unclassified")
	assert.NoError(t, RevokeBookProcessor(ops)(context.Background(), RevokeBookTask{task}))
}

func TestNewAccountQueues_ProcessPayloads(t *testing.T) {
	ops := &fakeOperations{}
	byName := map[string]backlite.Queue{}
	for _, q := range NewAccountQueues(ops) {
		byName[q.Config().Name] = q
	}
	require.Len(t, byName, 5)

	for _, name := range []string{"revoke_book", "delete_book", "download_book"} {
		q, ok := byName[name]
		require.True(t, ok, name)
		payload, err := json.Marshal(BookTask{ProfileID: 1, AccountID: 2, BookID: "urn:" + name})
		require.NoError(t, err)
		require.NoError(t, q.Process(context.Background(), payload))
	}
	assert.Equal(t, []string{
		"revoke urn:revoke_book",
		"delete urn:delete_book",
		"download urn:download_book",
	}, ops.calls)
	assert.Len(t, ops.resolved, 3)
}

type fakeCleaner struct {
	retention time.Duration
}

func (c *fakeCleaner) DeleteOldRecords(retention time.Duration) (int64, error) {
	c.retention = retention
	return 2, nil
}

func TestCleanupAuditRecordsProcessor(t *testing.T) {
	cleaner := &fakeCleaner{}
	require.NoError(t, CleanupAuditRecordsProcessor(cleaner)(context.Background(), CleanupAuditRecordsTask{}))
	assert.Equal(t, 30*24*time.Hour, cleaner.retention)

	require.NoError(t, CleanupAuditRecordsProcessor(cleaner)(context.Background(), CleanupAuditRecordsTask{RetentionDays: 7}))
	assert.Equal(t, 7*24*time.Hour, cleaner.retention)

	assert.Error(t, CleanupAuditRecordsProcessor(nil)(context.Background(), CleanupAuditRecordsTask{}))
}
