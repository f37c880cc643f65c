package cli

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mrlokans/patron/internal/entities"
)

// ProfilesCommand lists the profiles in the profile database.
type ProfilesCommand struct {
	store storeFlags
	out   io.Writer
}

func NewProfilesCommand() *ProfilesCommand {
	return &ProfilesCommand{out: os.Stdout}
}

func (cmd *ProfilesCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("profiles", flag.ExitOnError)
	cmd.store.register(fs, false)
	fs.Usage = usage(fs, "profiles [options]", "List profiles and how many accounts each holds.")
	return fs.Parse(args)
}

func (cmd *ProfilesCommand) Run() error {
	app, _, err := cmd.store.open(false)
	if err != nil {
		return err
	}
	defer app.Close()

	list := app.Profiles.Profiles()
	fmt.Fprintf(cmd.out, "%d profiles (%s mode)\n", len(list), app.Profiles.Mode())
	for _, p := range list {
		dob := "-"
		if d := p.Preferences().DateOfBirth; d != nil {
			dob = d.Format("2006-01-02")
		}
		fmt.Fprintf(cmd.out, "%4d  %-24s  born %s  %d accounts\n", p.ID(), p.DisplayName(), dob, p.Accounts().Len())
	}
	return nil
}

// ProfileCreateCommand creates a profile in multi-profile mode.
type ProfileCreateCommand struct {
	store       storeFlags
	Name        string
	DateOfBirth string
	out         io.Writer
}

func NewProfileCreateCommand() *ProfileCreateCommand {
	return &ProfileCreateCommand{out: os.Stdout}
}

func (cmd *ProfileCreateCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("profile-create", flag.ExitOnError)
	cmd.store.register(fs, false)
	fs.StringVar(&cmd.Name, "name", "", "Display name of the new profile (required)")
	fs.StringVar(&cmd.DateOfBirth, "dob", "", "Date of birth as YYYY-MM-DD, used for age-restricted catalogs")
	fs.Usage = usage(fs, "profile-create -name <name> [options]",
		"Create a profile. Accounts for automatically added providers are created with it.")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Name == "" {
		return fmt.Errorf("required flag -name not provided")
	}
	cmd.store.Multiple = true
	return nil
}

func (cmd *ProfileCreateCommand) Run() error {
	dob, err := parseDate(cmd.DateOfBirth)
	if err != nil {
		return err
	}

	app, _, err := cmd.store.open(false)
	if err != nil {
		return err
	}
	defer app.Close()

	p, err := app.Profiles.CreateProfile(cmd.Name, entities.ProfilePreferences{DateOfBirth: dob})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.out, "Created profile %d (%s) with %d accounts\n", p.ID(), p.DisplayName(), p.Accounts().Len())
	return nil
}
