package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/entities"
)

// AccountsCommand lists the accounts of a profile.
type AccountsCommand struct {
	store storeFlags
	out   io.Writer
}

func NewAccountsCommand() *AccountsCommand {
	return &AccountsCommand{out: os.Stdout}
}

func (cmd *AccountsCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("accounts", flag.ExitOnError)
	cmd.store.register(fs, true)
	fs.Usage = usage(fs, "accounts [options]", "List the accounts of a profile and their login state.")
	return fs.Parse(args)
}

func (cmd *AccountsCommand) Run() error {
	app, p, err := cmd.store.open(true)
	if err != nil {
		return err
	}
	defer app.Close()

	list := p.Accounts().Accounts()
	fmt.Fprintf(cmd.out, "Profile %d (%s): %d accounts\n", p.ID(), p.DisplayName(), len(list))
	for _, a := range list {
		state := "no login needed"
		if a.RequiresCredentials() {
			state = "logged out"
			if creds, ok := a.Credentials(); ok {
				state = "logged in as " + creds.Barcode
			}
		}
		books := len(app.Registry.BooksForAccount(int(a.ID())))
		fmt.Fprintf(cmd.out, "%4d  %-32s  %-24s  %d books\n", a.ID(), a.Provider().DisplayName, state, books)
	}
	return nil
}

// AccountCreateCommand adds an account for a provider to a profile.
type AccountCreateCommand struct {
	store      storeFlags
	ProviderID string
	out        io.Writer
}

func NewAccountCreateCommand() *AccountCreateCommand {
	return &AccountCreateCommand{out: os.Stdout}
}

func (cmd *AccountCreateCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("account-create", flag.ExitOnError)
	cmd.store.register(fs, true)
	fs.StringVar(&cmd.ProviderID, "provider", "", "Provider ID (required)")
	fs.Usage = usage(fs, "account-create -provider <id> [options]", "Add an account for a provider to a profile.")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.ProviderID == "" {
		return fmt.Errorf("required flag -provider not provided")
	}
	return nil
}

func (cmd *AccountCreateCommand) Run() error {
	app, p, err := cmd.store.open(true)
	if err != nil {
		return err
	}
	defer app.Close()

	provider, ok := app.Providers.ProviderByID(cmd.ProviderID)
	if !ok {
		return fmt.Errorf("unknown provider %s", cmd.ProviderID)
	}
	a, err := p.Accounts().CreateAccount(provider)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.out, "Created account %d for %s\n", a.ID(), provider.DisplayName)
	return nil
}

// LoginCommand validates credentials with a provider and stores them on an account.
type LoginCommand struct {
	store     storeFlags
	AccountID int
	Barcode   string
	PIN       string
	out       io.Writer
	// readPIN prompts for the PIN when -pin is not given.
	readPIN func() (string, error)
}

func NewLoginCommand() *LoginCommand {
	cmd := &LoginCommand{out: os.Stdout}
	cmd.readPIN = func() (string, error) {
		return readSecret(cmd.out, "PIN: ")
	}
	return cmd
}

func (cmd *LoginCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	cmd.store.register(fs, true)
	fs.IntVar(&cmd.AccountID, "account", -1, "Account ID (required)")
	fs.StringVar(&cmd.Barcode, "barcode", "", "Library card barcode (required)")
	fs.StringVar(&cmd.PIN, "pin", "", "PIN; prompted for without echo when omitted")
	fs.Usage = usage(fs, "login -account <id> -barcode <barcode> [options]", "Log in to a provider account.")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.AccountID < 0 {
		return fmt.Errorf("required flag -account not provided")
	}
	if cmd.Barcode == "" {
		return fmt.Errorf("required flag -barcode not provided")
	}
	return nil
}

func (cmd *LoginCommand) Run() error {
	app, p, err := cmd.store.open(true)
	if err != nil {
		return err
	}
	defer app.Close()

	account, err := p.Accounts().AccountByID(accounts.ID(cmd.AccountID))
	if err != nil {
		return err
	}

	pin := cmd.PIN
	if pin == "" {
		if pin, err = cmd.readPIN(); err != nil {
			return fmt.Errorf("failed to read PIN: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.Config.Transport.Timeout)
	defer cancel()
	if err := app.Controller.Login(ctx, account, entities.NewCredentials(cmd.Barcode, pin)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.out, "Logged in to %s\n", account.Provider().DisplayName)
	return nil
}
