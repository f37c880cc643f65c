package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/mrlokans/patron/internal/config"
	"github.com/mrlokans/patron/internal/entrypoint"
	"github.com/mrlokans/patron/internal/profiles"
)

// storeFlags are the flags every command uses to locate and open the profile database.
// Defaults come from the environment configuration.
type storeFlags struct {
	DataDir   string
	Multiple  bool
	ProfileID int

	cfg *config.Config
}

func (f *storeFlags) register(fs *flag.FlagSet, withProfile bool) {
	f.cfg = config.NewConfig()
	fs.StringVar(&f.DataDir, "data", f.cfg.Storage.DataDir, "Application data directory")
	fs.BoolVar(&f.Multiple, "multiple", !f.cfg.Profiles.Anonymous(), "Use multi-profile mode instead of the anonymous profile")
	if withProfile {
		fs.IntVar(&f.ProfileID, "profile", -1, "Profile ID to act on (multi-profile mode)")
	}
}

func (f *storeFlags) config() *config.Config {
	cfg := *f.cfg
	cfg.Storage.DataDir = f.DataDir
	if f.Multiple {
		cfg.Profiles.Mode = config.ProfileModeMultiple
	} else {
		cfg.Profiles.Mode = config.ProfileModeAnonymous
	}
	return &cfg
}

// open bootstraps the application. When selectProfile is set, the -profile flag picks
// the current profile in multi-profile mode.
func (f *storeFlags) open(selectProfile bool) (*entrypoint.App, *profiles.Profile, error) {
	app, err := entrypoint.Bootstrap(f.config())
	if err != nil {
		return nil, nil, err
	}
	if !selectProfile {
		return app, nil, nil
	}

	if app.Profiles.Mode() == profiles.ModeMultiple && f.ProfileID < 0 {
		app.Close()
		return nil, nil, fmt.Errorf("required flag -profile not provided")
	}
	p, err := app.SelectProfile(profiles.ID(f.ProfileID))
	if err != nil {
		app.Close()
		return nil, nil, err
	}
	return app, p, nil
}

func usage(fs *flag.FlagSet, synopsis, description string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: %s %s\n\n", os.Args[0], synopsis)
		fmt.Fprintf(os.Stderr, "%s\n\n", description)
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return &t, nil
}

// readSecret prompts on out and reads a line from stdin without echo.
func readSecret(out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(out)
	return strings.TrimSpace(string(secret)), nil
}
