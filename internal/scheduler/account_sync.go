// Package scheduler runs periodic syncs of every account of every profile.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/controller"
	"github.com/mrlokans/patron/internal/profiles"
)

const defaultSyncTimeout = 10 * time.Minute

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule checks a five-field cron expression.
func ValidateCronSchedule(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

// NextRunTime returns the next time schedule fires after now.
func NextRunTime(schedule string, now time.Time) (time.Time, error) {
	s, err := cronParser.Parse(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(now), nil
}

// ProfileLister lists the profiles whose accounts are synced.
type ProfileLister interface {
	Profiles() []*profiles.Profile
}

// AccountSyncer syncs one account.
type AccountSyncer interface {
	BooksSync(ctx context.Context, account *accounts.Account, opts ...controller.SyncOption) (*controller.SyncResult, error)
}

// Config configures an AccountSyncScheduler.
type Config struct {
	Enabled  bool
	Schedule string
	// Parallelism bounds how many accounts of one profile sync at once.
	Parallelism int
	// Timeout bounds one full pass over all profiles.
	Timeout time.Duration
}

// Summary reports the outcome of one pass.
type Summary struct {
	Accounts  int
	Succeeded int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// AccountSyncScheduler periodically syncs all accounts.
type AccountSyncScheduler struct {
	profiles ProfileLister
	syncer   AccountSyncer
	config   Config

	cron        *cron.Cron
	entryID     cron.EntryID
	mu          sync.RWMutex
	isRunning   bool
	isSyncing   bool
	lastSummary *Summary
	cancelFunc  context.CancelFunc
}

func NewAccountSyncScheduler(lister ProfileLister, syncer AccountSyncer, cfg Config) *AccountSyncScheduler {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSyncTimeout
	}
	return &AccountSyncScheduler{
		profiles: lister,
		syncer:   syncer,
		config:   cfg,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Start begins the scheduler if sync is enabled
func (s *AccountSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if !s.config.Enabled {
		log.Printf("[SYNC] scheduler disabled")
		return nil
	}
	if err := ValidateCronSchedule(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.config.Schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runSync()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sync job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	nextRun, _ := NextRunTime(s.config.Schedule, time.Now())
	log.Printf("[SYNC] scheduler started with schedule '%s'. Next run: %v", s.config.Schedule, nextRun)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler, waiting for a running pass to finish.
func (s *AccountSyncScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancelFunc
	s.cancelFunc = nil
	entryID := s.entryID
	s.mu.Unlock()

	// A running pass takes mu when it finishes, so wait without holding it.
	<-s.cron.Stop().Done()
	s.cron.Remove(entryID)
	if cancel != nil {
		cancel()
	}

	log.Printf("[SYNC] scheduler stopped")
}

// RunNow triggers an immediate pass in the background.
func (s *AccountSyncScheduler) RunNow() {
	go s.runSync()
}

func (s *AccountSyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// IsSyncing returns whether a pass is in progress
func (s *AccountSyncScheduler) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSyncing
}

// LastSummary returns the outcome of the most recent pass, if any.
func (s *AccountSyncScheduler) LastSummary() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSummary == nil {
		return nil
	}
	summary := *s.lastSummary
	return &summary
}

// GetNextRunTime returns when the next pass will occur
func (s *AccountSyncScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// runSync performs one pass unless one is already running.
func (s *AccountSyncScheduler) runSync() {
	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		log.Printf("[SYNC] scheduled pass skipped (already syncing)")
		return
	}
	s.isSyncing = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()
	summary := s.SyncAll(ctx)

	s.mu.Lock()
	s.isSyncing = false
	s.lastSummary = &summary
	s.mu.Unlock()
}

// SyncAll syncs every account of every profile. Profiles are visited in ID order and
// the accounts of one profile are synced in parallel, bounded by Parallelism.
func (s *AccountSyncScheduler) SyncAll(ctx context.Context) Summary {
	start := time.Now()
	var (
		mu      sync.Mutex
		summary Summary
	)
	record := func(result *controller.SyncResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			summary.Failed++
		case result.Skipped:
			summary.Skipped++
		default:
			summary.Succeeded++
		}
	}

	for _, profile := range s.profiles.Profiles() {
		if ctx.Err() != nil {
			break
		}
		age := profile.Age()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.config.Parallelism)
		for _, account := range profile.Accounts().Accounts() {
			mu.Lock()
			summary.Accounts++
			mu.Unlock()
			g.Go(func() error {
				result, err := s.syncer.BooksSync(gctx, account, controller.WithAge(age))
				if err != nil {
					log.Printf("[SYNC] profile %d account %d: %v", profile.ID(), account.ID(), err)
				}
				record(result, err)
				return nil
			})
		}
		g.Wait()
	}

	summary.Duration = time.Since(start)
	log.Printf("[SYNC] pass finished in %v: %d accounts, %d synced, %d skipped, %d failed",
		summary.Duration.Round(time.Millisecond), summary.Accounts, summary.Succeeded, summary.Skipped, summary.Failed)
	return summary
}
