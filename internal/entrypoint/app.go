package entrypoint

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm/logger"

	"github.com/mrlokans/patron/internal/audit"
	"github.com/mrlokans/patron/internal/config"
	"github.com/mrlokans/patron/internal/controller"
	"github.com/mrlokans/patron/internal/database/books"
	"github.com/mrlokans/patron/internal/feed"
	"github.com/mrlokans/patron/internal/profiles"
	"github.com/mrlokans/patron/internal/providers"
	"github.com/mrlokans/patron/internal/registry"
	"github.com/mrlokans/patron/internal/transport"
)

// App is the wired application core shared by the server and the CLI commands.
type App struct {
	Config     *config.Config
	Providers  *providers.Registry
	Profiles   *profiles.Store
	Registry   *registry.Registry
	Controller *controller.Controller
	Auditor    *audit.Auditor
}

// Bootstrap opens the profile database under cfg.Storage.DataDir and wires the
// controller. If a profile is current, its books are loaded into the registry.
func Bootstrap(cfg *config.Config) (*App, error) {
	catalog, err := providers.Load(cfg.Providers.File, cfg.Providers.DefaultProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to load providers: %w", err)
	}
	bundled, err := providers.LoadBundledCredentials(cfg.Providers.BundledCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load bundled credentials: %w", err)
	}

	mode := profiles.ModeAnonymous
	if !cfg.Profiles.Anonymous() {
		mode = profiles.ModeMultiple
	}

	store, err := profiles.Open(profiles.Config{
		Directory:          cfg.Storage.DataDir,
		Mode:               mode,
		Providers:          catalog,
		BundledCredentials: bundled,
		BookDatabase:       books.NewSQLiteDatabase(sqlLogLevel(cfg.Storage.SQLLogLevel)),
		LockTimeout:        cfg.Storage.LockTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open profiles: %w", err)
	}
	log.Printf("[PROFILES] opened %d profiles in %s mode", store.Len(), store.Mode())

	auditor := audit.NewAuditor(cfg.Audit.Dir)
	reg := registry.New()
	ctrl := controller.New(controller.Config{
		Transport: transport.NewHTTPTransport(cfg.Transport.Timeout, cfg.Transport.UserAgent),
		Parser:    feed.NewJSONParser(),
		Registry:  reg,
		Profiles:  store,
		Auditor:   auditor,
	})

	app := &App{
		Config:     cfg,
		Providers:  catalog,
		Profiles:   store,
		Registry:   reg,
		Controller: ctrl,
		Auditor:    auditor,
	}

	if current, err := store.Current(); err == nil {
		if _, err := ctrl.ActivateProfile(current); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to load books: %w", err)
		}
	} else if !errors.Is(err, profiles.ErrNoCurrentProfile) {
		store.Close()
		return nil, err
	}
	return app, nil
}

// SelectProfile makes id the current profile and loads its books. In anonymous mode
// the anonymous profile is always current and id is ignored.
func (a *App) SelectProfile(id profiles.ID) (*profiles.Profile, error) {
	if a.Profiles.Mode() == profiles.ModeAnonymous {
		return a.Profiles.Current()
	}
	if err := a.Profiles.SetCurrent(id); err != nil {
		return nil, err
	}
	p, err := a.Profiles.Current()
	if err != nil {
		return nil, err
	}
	if _, err := a.Controller.ActivateProfile(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Close releases the profile database.
func (a *App) Close() error {
	return a.Profiles.Close()
}

func sqlLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
