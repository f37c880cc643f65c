package http

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/controller"
	"github.com/mrlokans/patron/internal/entities"
	"github.com/mrlokans/patron/internal/profiles"
	"github.com/mrlokans/patron/internal/registry"
	"github.com/mrlokans/patron/internal/scheduler"
)

// ProfileManager is the profile store surface used by the profile endpoints.
type ProfileManager interface {
	Mode() profiles.Mode
	Profiles() []*profiles.Profile
	ProfileByID(id profiles.ID) (*profiles.Profile, error)
	CreateProfile(displayName string, prefs entities.ProfilePreferences) (*profiles.Profile, error)
	DeleteProfile(id profiles.ID) error
	SetCurrent(id profiles.ID) error
	Current() (*profiles.Profile, error)
	Len() int
}

// ProviderCatalog lists the providers accounts can be created for.
type ProviderCatalog interface {
	Providers() []entities.ProviderDescription
	ProviderByID(id string) (entities.ProviderDescription, bool)
}

// AccountOperations is the controller surface used by the account and book endpoints.
type AccountOperations interface {
	CurrentProfile() (*profiles.Profile, error)
	CurrentAccount(accountID accounts.ID) (*profiles.Profile, *accounts.Account, error)
	ActivateProfile(p *profiles.Profile) (int, error)
	LoadAccount(account *accounts.Account) (int, error)
	BooksSync(ctx context.Context, account *accounts.Account, opts ...controller.SyncOption) (*controller.SyncResult, error)
	Login(ctx context.Context, account *accounts.Account, credentials entities.Credentials) error
	Logout(account *accounts.Account) error
	BookRevoke(ctx context.Context, account *accounts.Account, bookID string) error
	BookRevokeFailedDismiss(account *accounts.Account, bookID string) error
	BookDelete(account *accounts.Account, bookID string) error
	BookDownload(ctx context.Context, account *accounts.Account, bookID string) error
}

// BookLister reads the book registry.
type BookLister interface {
	Books() []registry.Record
	BooksForAccount(accountID int) []registry.Record
	BookOrError(id string) (registry.Record, error)
	Len() int
}

// TaskQueue enqueues background tasks and reports their status.
type TaskQueue interface {
	Enqueue(task backlite.Task) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// SyncScheduler is the periodic sync scheduler surface.
type SyncScheduler interface {
	IsRunning() bool
	IsSyncing() bool
	RunNow()
	LastSummary() *scheduler.Summary
	GetNextRunTime() *time.Time
}

// EventSource streams registry changes.
type EventSource interface {
	Subscribe(buffer int) (<-chan registry.Event, func())
}
