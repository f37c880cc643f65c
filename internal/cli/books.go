package cli

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mrlokans/patron/internal/registry"
)

// BooksCommand lists the books held by a profile's accounts.
type BooksCommand struct {
	store     storeFlags
	AccountID int
	out       io.Writer
}

func NewBooksCommand() *BooksCommand {
	return &BooksCommand{out: os.Stdout}
}

func (cmd *BooksCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("books", flag.ExitOnError)
	cmd.store.register(fs, true)
	fs.IntVar(&cmd.AccountID, "account", -1, "Only list books of this account")
	fs.Usage = usage(fs, "books [options]", "List the books on loan or on hold, as of the last sync.")
	return fs.Parse(args)
}

func (cmd *BooksCommand) Run() error {
	app, _, err := cmd.store.open(true)
	if err != nil {
		return err
	}
	defer app.Close()

	var records []registry.Record
	if cmd.AccountID >= 0 {
		records = app.Registry.BooksForAccount(cmd.AccountID)
	} else {
		records = app.Registry.Books()
	}

	fmt.Fprintf(cmd.out, "%d books\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(cmd.out, "%-18s  %-40s  %s\n", rec.Status, rec.Book.Entry.Title, rec.Book.ID)
	}
	return nil
}
