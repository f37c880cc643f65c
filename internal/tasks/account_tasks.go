package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/controller"
	"github.com/mrlokans/patron/internal/entities"
	"github.com/mrlokans/patron/internal/profiles"
)

// AccountOperations is the part of the controller the account task queues run.
type AccountOperations interface {
	ResolveAccount(profileID profiles.ID, accountID accounts.ID) (*profiles.Profile, *accounts.Account, error)
	BooksSync(ctx context.Context, account *accounts.Account, opts ...controller.SyncOption) (*controller.SyncResult, error)
	Login(ctx context.Context, account *accounts.Account, credentials entities.Credentials) error
	BookRevoke(ctx context.Context, account *accounts.Account, bookID string) error
	BookDelete(account *accounts.Account, bookID string) error
	BookDownload(ctx context.Context, account *accounts.Account, bookID string) error
}

func accountQueueConfig(name string, attempts int, timeout time.Duration) backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        name,
		MaxAttempts: attempts,
		Backoff:     30 * time.Second,
		Timeout:     timeout,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// settle decides how a controller failure ends a task. Network and server failures are
// returned so backlite retries them; every other failure is final and completes the
// task after being logged.
func settle(operation string, err error) error {
	if err == nil {
		return nil
	}
	if controller.IsRetryable(err) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	log.Printf("[TASK] %s failed (%s): %v", operation, controller.KindOf(err), err)
	return nil
}

// SyncAccountTask syncs the books of one account.
type SyncAccountTask struct {
	ProfileID int `json:"profile_id"`
	AccountID int `json:"account_id"`
}

func (t SyncAccountTask) Config() backlite.QueueConfig {
	return accountQueueConfig("sync_account", 3, 5*time.Minute)
}

// SyncAccountProcessor creates a processor function for SyncAccountTask.
func SyncAccountProcessor(ops AccountOperations) backlite.QueueProcessor[SyncAccountTask] {
	return func(ctx context.Context, task SyncAccountTask) error {
		if ops == nil {
			return fmt.Errorf("account operations not configured")
		}
		op := fmt.Sprintf("sync profile %d account %d", task.ProfileID, task.AccountID)

		profile, account, err := ops.ResolveAccount(profiles.ID(task.ProfileID), accounts.ID(task.AccountID))
		if err != nil {
			return settle(op, err)
		}

		age := -1
		if profile != nil {
			age = profile.Age()
		}
		result, err := ops.BooksSync(ctx, account, controller.WithAge(age))
		if err != nil {
			return settle(op, err)
		}
		if result.Skipped {
			log.Printf("[TASK] %s skipped: not logged in", op)
			return nil
		}
		if entryErr := result.Err(); entryErr != nil {
			log.Printf("[TASK] %s finished with entry errors: %v", op, entryErr)
		}
		log.Printf("[TASK] %s: %d added, %d updated, %d removed",
			op, len(result.Added), len(result.Updated), len(result.Removed))
		return nil
	}
}

// NewSyncAccountQueue creates a backlite queue for account syncs.
func NewSyncAccountQueue(ops AccountOperations) backlite.Queue {
	return backlite.NewQueue(SyncAccountProcessor(ops))
}

// LoginTask validates and stores credentials for one account.
type LoginTask struct {
	ProfileID  int    `json:"profile_id"`
	AccountID  int    `json:"account_id"`
	Barcode    string `json:"barcode"`
	PIN        string `json:"pin"`
	OAuthToken string `json:"oauth_token,omitempty"`
}

func (t LoginTask) Config() backlite.QueueConfig {
	return accountQueueConfig("login", 3, time.Minute)
}

func (t LoginTask) credentials() entities.Credentials {
	return entities.NewCredentials(t.Barcode, t.PIN).WithOAuthToken(t.OAuthToken)
}

// LoginProcessor creates a processor function for LoginTask.
func LoginProcessor(ops AccountOperations) backlite.QueueProcessor[LoginTask] {
	return func(ctx context.Context, task LoginTask) error {
		if ops == nil {
			return fmt.Errorf("account operations not configured")
		}
		op := fmt.Sprintf("login profile %d account %d", task.ProfileID, task.AccountID)

		_, account, err := ops.ResolveAccount(profiles.ID(task.ProfileID), accounts.ID(task.AccountID))
		if err != nil {
			return settle(op, err)
		}
		if err := ops.Login(ctx, account, task.credentials()); err != nil {
			return settle(op, err)
		}
		log.Printf("[TASK] %s succeeded", op)
		return nil
	}
}

// NewLoginQueue creates a backlite queue for logins.
func NewLoginQueue(ops AccountOperations) backlite.Queue {
	return backlite.NewQueue(LoginProcessor(ops))
}

// BookTask addresses one book of one account.
type BookTask struct {
	ProfileID int    `json:"profile_id"`
	AccountID int    `json:"account_id"`
	BookID    string `json:"book_id"`
}

func (t BookTask) describe(verb string) string {
	return fmt.Sprintf("%s book %s of profile %d account %d", verb, t.BookID, t.ProfileID, t.AccountID)
}

// RevokeBookTask returns a loan or cancels a hold.
type RevokeBookTask struct {
	BookTask
}

func (t RevokeBookTask) Config() backlite.QueueConfig {
	return accountQueueConfig("revoke_book", 2, time.Minute)
}

// DeleteBookTask removes a book's local copy.
type DeleteBookTask struct {
	BookTask
}

func (t DeleteBookTask) Config() backlite.QueueConfig {
	return accountQueueConfig("delete_book", 1, time.Minute)
}

// DownloadBookTask fetches a book's content.
type DownloadBookTask struct {
	BookTask
}

func (t DownloadBookTask) Config() backlite.QueueConfig {
	return accountQueueConfig("download_book", 3, 10*time.Minute)
}

type bookTask interface {
	backlite.Task
	book() BookTask
}

func bookProcessor[T bookTask](ops AccountOperations, verb string,
	run func(ctx context.Context, account *accounts.Account, bookID string) error) backlite.QueueProcessor[T] {
	return func(ctx context.Context, task T) error {
		if ops == nil {
			return fmt.Errorf("account operations not configured")
		}
		bt := task.book()
		op := bt.describe(verb)

		_, account, err := ops.ResolveAccount(profiles.ID(bt.ProfileID), accounts.ID(bt.AccountID))
		if err != nil {
			return settle(op, err)
		}
		if err := run(ctx, account, bt.BookID); err != nil {
			return settle(op, err)
		}
		log.Printf("[TASK] %s succeeded", op)
		return nil
	}
}

func (t BookTask) book() BookTask {
	return t
}

// RevokeBookProcessor creates a processor function for RevokeBookTask.
func RevokeBookProcessor(ops AccountOperations) backlite.QueueProcessor[RevokeBookTask] {
	return bookProcessor[RevokeBookTask](ops, "revoke", func(ctx context.Context, a *accounts.Account, id string) error {
		return ops.BookRevoke(ctx, a, id)
	})
}

// DeleteBookProcessor creates a processor function for DeleteBookTask.
func DeleteBookProcessor(ops AccountOperations) backlite.QueueProcessor[DeleteBookTask] {
	return bookProcessor[DeleteBookTask](ops, "delete", func(_ context.Context, a *accounts.Account, id string) error {
		return ops.BookDelete(a, id)
	})
}

// DownloadBookProcessor creates a processor function for DownloadBookTask.
func DownloadBookProcessor(ops AccountOperations) backlite.QueueProcessor[DownloadBookTask] {
	return bookProcessor[DownloadBookTask](ops, "download", func(ctx context.Context, a *accounts.Account, id string) error {
		return ops.BookDownload(ctx, a, id)
	})
}

// NewAccountQueues creates the queues for every account operation.
func NewAccountQueues(ops AccountOperations) []backlite.Queue {
	return []backlite.Queue{
		NewSyncAccountQueue(ops),
		NewLoginQueue(ops),
		backlite.NewQueue(RevokeBookProcessor(ops)),
		backlite.NewQueue(DeleteBookProcessor(ops)),
		backlite.NewQueue(DownloadBookProcessor(ops)),
	}
}
