package main

import (
	"fmt"
	"os"

	"github.com/mrlokans/patron/internal/cli"
	"github.com/mrlokans/patron/internal/config"
	"github.com/mrlokans/patron/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

// command is implemented by every CLI subcommand.
type command interface {
	ParseFlags(args []string) error
	Run() error
}

func main() {
	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		cfg := config.NewConfig()
		entrypoint.Run(cfg, Version)
		return
	}

	name := os.Args[1]
	args := os.Args[2:]

	var cmd command
	switch name {
	case "profiles":
		cmd = cli.NewProfilesCommand()
	case "profile-create":
		cmd = cli.NewProfileCreateCommand()
	case "accounts":
		cmd = cli.NewAccountsCommand()
	case "account-create":
		cmd = cli.NewAccountCreateCommand()
	case "login":
		cmd = cli.NewLoginCommand()
	case "sync":
		cmd = cli.NewSyncCommand()
	case "books":
		cmd = cli.NewBooksCommand()

	case "version":
		fmt.Printf("patron %s (%s)\n", Version, Commit)
		return

	case "-h", "--help", "help":
		printUsage()
		return

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve           Start the HTTP server (default if no command given)\n")
	fmt.Fprintf(os.Stderr, "  profiles        List profiles\n")
	fmt.Fprintf(os.Stderr, "  profile-create  Create a profile (multi-profile mode)\n")
	fmt.Fprintf(os.Stderr, "  accounts        List the accounts of a profile\n")
	fmt.Fprintf(os.Stderr, "  account-create  Add a provider account to a profile\n")
	fmt.Fprintf(os.Stderr, "  login           Log in to a provider account\n")
	fmt.Fprintf(os.Stderr, "  sync            Sync loans and holds of a profile's accounts\n")
	fmt.Fprintf(os.Stderr, "  books           List books on loan or on hold\n")
	fmt.Fprintf(os.Stderr, "  version         Print version information\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
