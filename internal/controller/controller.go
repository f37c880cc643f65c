// Package controller orchestrates login, sync, revoke, download and delete against
// accounts. It owns no persistent state: it drives the transport and feed parser,
// writes results into each account's book collection and mirrors them in the registry.
//
// Every operation returns nil or a *Failure; raw transport, parse and storage errors
// are classified at this boundary and never escape unwrapped.
package controller

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/entities"
	"github.com/mrlokans/patron/internal/feed"
	"github.com/mrlokans/patron/internal/profiles"
	"github.com/mrlokans/patron/internal/registry"
	"github.com/mrlokans/patron/internal/transport"
)

// DRMActivator activates a device with the DRM vendor after a successful login.
type DRMActivator interface {
	Activate(ctx context.Context, provider entities.ProviderDescription, credentials entities.AdobeCredentials) (entities.AdobePostActivation, error)
}

// Auditor records responses that could not be parsed.
type Auditor interface {
	RecordResponse(operation string, accountID int, uri string, status int, body []byte, cause error) (string, error)
}

// ProfileSource resolves profiles for operations addressed by ID.
type ProfileSource interface {
	Current() (*profiles.Profile, error)
	ProfileByID(id profiles.ID) (*profiles.Profile, error)
}

// Config holds the collaborators of a Controller. Profiles, DRM and Auditor may be nil.
type Config struct {
	Transport transport.Transport
	Parser    feed.Parser
	Registry  *registry.Registry
	Profiles  ProfileSource
	DRM       DRMActivator
	Auditor   Auditor
}

type Controller struct {
	transport transport.Transport
	parser    feed.Parser
	registry  *registry.Registry
	profiles  ProfileSource
	drm       DRMActivator
	auditor   Auditor

	// syncLocks serializes syncs of one account, keyed by account directory.
	syncLocks sync.Map

	// registryMu orders registry writes against profile activation. Writers on behalf of
	// one account hold it for reading; ActivateProfile holds it for writing.
	registryMu sync.RWMutex
}

func New(cfg Config) *Controller {
	return &Controller{
		transport: cfg.Transport,
		parser:    cfg.Parser,
		registry:  cfg.Registry,
		profiles:  cfg.Profiles,
		drm:       cfg.DRM,
		auditor:   cfg.Auditor,
	}
}

// Registry is the registry the controller publishes into.
func (c *Controller) Registry() *registry.Registry {
	return c.registry
}

// CurrentProfile returns the current profile.
func (c *Controller) CurrentProfile() (*profiles.Profile, error) {
	if c.profiles == nil {
		return nil, failure(FailureProfileConfiguration, nil, "no profile store configured")
	}
	p, err := c.profiles.Current()
	if err != nil {
		return nil, failure(FailureProfileConfiguration, err, "no current profile")
	}
	return p, nil
}

// CurrentAccount returns an account of the current profile.
func (c *Controller) CurrentAccount(accountID accounts.ID) (*profiles.Profile, *accounts.Account, error) {
	p, err := c.CurrentProfile()
	if err != nil {
		return nil, nil, err
	}
	a, err := p.Accounts().AccountByID(accountID)
	if err != nil {
		return nil, nil, failure(FailureProfileConfiguration, err, "profile %d has no account %d", p.ID(), accountID)
	}
	return p, a, nil
}

// ResolveAccount returns an account of a specific profile.
func (c *Controller) ResolveAccount(profileID profiles.ID, accountID accounts.ID) (*profiles.Profile, *accounts.Account, error) {
	if c.profiles == nil {
		return nil, nil, failure(FailureProfileConfiguration, nil, "no profile store configured")
	}
	p, err := c.profiles.ProfileByID(profileID)
	if err != nil {
		return nil, nil, failure(FailureProfileConfiguration, err, "no profile %d", profileID)
	}
	a, err := p.Accounts().AccountByID(accountID)
	if err != nil {
		return nil, nil, failure(FailureProfileConfiguration, err, "profile %d has no account %d", profileID, accountID)
	}
	return p, a, nil
}

// LoadAccount registers every book already in the account's collection and returns
// how many were registered.
func (c *Controller) LoadAccount(account *accounts.Account) (int, error) {
	c.registryMu.RLock()
	defer c.registryMu.RUnlock()
	return c.loadAccountLocked(account)
}

func (c *Controller) loadAccountLocked(account *accounts.Account) (int, error) {
	entries, err := account.Books().Entries()
	if err != nil {
		return 0, failure(FailureGeneral, err, "list books of account %d", account.ID())
	}

	loaded := 0
	for i := range entries {
		book, err := registry.BookFromEntry(&entries[i])
		if err != nil {
			log.Printf("[SYNC] skipping unreadable book %s of account %d: %v", entries[i].ID, account.ID(), err)
			continue
		}
		c.registry.Update(book)
		loaded++
	}
	return loaded, nil
}

func (c *Controller) syncLock(account *accounts.Account) *sync.Mutex {
	lock, _ := c.syncLocks.LoadOrStore(account.Directory(), &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func authFor(account *accounts.Account) *transport.Auth {
	creds, ok := account.Credentials()
	if !ok {
		return nil
	}
	return transport.AuthFromCredentials(creds)
}

// fetch performs a request and classifies transport-level outcomes. A nil error means a
// 2xx response.
func (c *Controller) fetch(ctx context.Context, uri string, auth *transport.Auth) (*transport.Response, error) {
	resp, err := c.transport.Fetch(ctx, uri, auth)
	if err != nil {
		return nil, failure(FailureNetwork, err, "request %s", uri)
	}
	switch {
	case resp.Status == http.StatusUnauthorized:
		return resp, statusFailure(FailureCredentialsIncorrect, resp.Status, "provider rejected credentials for %s", uri)
	case !resp.OK():
		return resp, statusFailure(FailureServer, resp.Status, "%s returned status %d", uri, resp.Status)
	}
	return resp, nil
}

// parse reads a feed, auditing the raw body when it cannot be parsed.
func (c *Controller) parse(operation string, account *accounts.Account, uri string, resp *transport.Response) (*feed.Feed, error) {
	f, err := c.parser.Parse(resp.Body)
	if err == nil {
		return f, nil
	}
	if c.auditor != nil {
		if name, auditErr := c.auditor.RecordResponse(operation, int(account.ID()), uri, resp.Status, resp.Body, err); auditErr != nil {
			log.Printf("[SYNC] failed to audit unparsable response from %s: %v", uri, auditErr)
		} else {
			log.Printf("[SYNC] unparsable response from %s saved as %s", uri, name)
		}
	}
	return nil, failure(FailureParse, err, "parse response of %s", uri)
}

func describeAccount(account *accounts.Account) string {
	return fmt.Sprintf("account %d (%s)", account.ID(), account.Provider().DisplayName)
}
