package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/controller"
)

// SyncCommand syncs the loans and holds of a profile's accounts.
type SyncCommand struct {
	store     storeFlags
	AccountID int
	Verbose   bool
	out       io.Writer
}

func NewSyncCommand() *SyncCommand {
	return &SyncCommand{out: os.Stdout}
}

func (cmd *SyncCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	cmd.store.register(fs, true)
	fs.IntVar(&cmd.AccountID, "account", -1, "Only sync this account")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "List the books added, updated and removed")
	fs.Usage = usage(fs, "sync [options]", "Sync loans and holds of every account of a profile.")
	return fs.Parse(args)
}

func (cmd *SyncCommand) Run() error {
	app, p, err := cmd.store.open(true)
	if err != nil {
		return err
	}
	defer app.Close()

	targets := p.Accounts().Accounts()
	if cmd.AccountID >= 0 {
		a, err := p.Accounts().AccountByID(accounts.ID(cmd.AccountID))
		if err != nil {
			return err
		}
		targets = []*accounts.Account{a}
	}

	var failures []error
	for _, a := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), app.Config.Sync.Timeout)
		result, err := app.Controller.BooksSync(ctx, a, controller.WithAge(p.Age()))
		cancel()

		name := a.Provider().DisplayName
		switch {
		case err != nil:
			fmt.Fprintf(cmd.out, "%s: failed (%s): %v\n", name, controller.KindOf(err), err)
			failures = append(failures, err)
			continue
		case result.Skipped:
			fmt.Fprintf(cmd.out, "%s: skipped, not logged in\n", name)
			continue
		}

		fmt.Fprintf(cmd.out, "%s: %d added, %d updated, %d removed\n",
			name, len(result.Added), len(result.Updated), len(result.Removed))
		if cmd.Verbose {
			for _, id := range result.Added {
				fmt.Fprintf(cmd.out, "  + %s\n", id)
			}
			for _, id := range result.Removed {
				fmt.Fprintf(cmd.out, "  - %s\n", id)
			}
		}
		if err := result.Err(); err != nil {
			fmt.Fprintf(cmd.out, "  %d books could not be stored: %v\n", len(result.EntryErrors), err)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d accounts failed to sync: %w", len(failures), len(targets), errors.Join(failures...))
	}
	return nil
}
