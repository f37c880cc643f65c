package controller

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/database/books"
	"github.com/mrlokans/patron/internal/entities"
	"github.com/mrlokans/patron/internal/feed"
	"github.com/mrlokans/patron/internal/profiles"
	"github.com/mrlokans/patron/internal/providers"
	"github.com/mrlokans/patron/internal/registry"
	"github.com/mrlokans/patron/internal/transport"
)

const (
	libraryID  = "urn:provider:library"
	openID     = "urn:provider:open"
	loansURI   = "http://library.example/loans"
	loginURI   = "http://library.example/login"
	openFeed   = "http://open.example/feed"
	revokeBase = "http://library.example/revoke/"
)

type fakeTransport struct {
	mu        sync.Mutex
	responses map[string]*transport.Response
	errs      map[string]error
	calls     []string
	auths     []*transport.Auth
	delay     time.Duration
	inflight  int
	maxFlight int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		responses: make(map[string]*transport.Response),
		errs:      make(map[string]error),
	}
}

func (f *fakeTransport) Fetch(ctx context.Context, uri string, auth *transport.Auth) (*transport.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, uri)
	f.auths = append(f.auths, auth)
	f.inflight++
	if f.inflight > f.maxFlight {
		f.maxFlight = f.inflight
	}
	delay := f.delay
	f.mu.Unlock()

	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight--
	if err, ok := f.errs[uri]; ok {
		return nil, err
	}
	if resp, ok := f.responses[uri]; ok {
		return resp, nil
	}
	return &transport.Response{Status: http.StatusNotFound}, nil
}

func (f *fakeTransport) respond(uri string, status int, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[uri] = &transport.Response{Status: status, Body: body}
}

func (f *fakeTransport) respondFeed(t *testing.T, uri string, entries ...feed.Entry) {
	t.Helper()
	body, err := feed.Encode(&feed.Feed{ID: uri, Title: "Loans", Entries: entries})
	require.NoError(t, err)
	f.respond(uri, http.StatusOK, body)
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAuditor struct {
	records []string
}

func (a *fakeAuditor) RecordResponse(operation string, accountID int, uri string, status int, body []byte, cause error) (string, error) {
	a.records = append(a.records, operation+" "+uri)
	return "audit.json", nil
}

type fakeDRM struct {
	err   error
	calls int
}

func (d *fakeDRM) Activate(ctx context.Context, provider entities.ProviderDescription, credentials entities.AdobeCredentials) (entities.AdobePostActivation, error) {
	d.calls++
	if d.err != nil {
		return entities.AdobePostActivation{}, d.err
	}
	return entities.AdobePostActivation{DeviceID: "device-1", UserID: "user-1"}, nil
}

type fixture struct {
	catalog   *providers.Registry
	transport *fakeTransport
	registry  *registry.Registry
	profiles  *profiles.Store
	auditor   *fakeAuditor
	drm       *fakeDRM
	ctrl      *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := providers.NewRegistry([]entities.ProviderDescription{
		{
			ID:          libraryID,
			DisplayName: "Library",
			CatalogURI:  "http://library.example/catalog",
			LoansURI:    loansURI,
			SupportsDRM: true,
			Authentication: &entities.AuthenticationDescription{
				LoginURI:                  loginURI,
				PassCodeLength:            4,
				PassCodeMayContainLetters: true,
			},
		},
		{ID: openID, DisplayName: "Open", CatalogURI: openFeed},
	}, libraryID)
	require.NoError(t, err)

	store, err := profiles.Open(profiles.Config{
		Directory:    t.TempDir(),
		Mode:         profiles.ModeMultiple,
		Providers:    catalog,
		BookDatabase: books.NewSQLiteDatabase(logger.Silent),
		LockTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		catalog:   catalog,
		transport: newFakeTransport(),
		registry:  registry.New(),
		profiles:  store,
		auditor:   &fakeAuditor{},
		drm:       &fakeDRM{},
	}
	f.ctrl = New(Config{
		Transport: f.transport,
		Parser:    feed.NewJSONParser(),
		Registry:  f.registry,
		Profiles:  store,
		DRM:       f.drm,
		Auditor:   f.auditor,
	})
	return f
}

// kermit creates the profile "Kermit" whose only account is with the library.
func (f *fixture) kermit(t *testing.T) (*profiles.Profile, *accounts.Account) {
	t.Helper()
	p, err := f.profiles.CreateProfile("Kermit", entities.ProfilePreferences{})
	require.NoError(t, err)
	require.NoError(t, f.profiles.SetCurrent(p.ID()))
	account, err := p.Accounts().AccountByProvider(libraryID)
	require.NoError(t, err)
	return p, account
}

func setCredentials(t *testing.T, account *accounts.Account) {
	t.Helper()
	creds := entities.NewCredentials("1234", "abcd")
	require.NoError(t, account.SetCredentials(&creds))
}

func loaned(id string) feed.Entry {
	return feed.Entry{
		ID:             id,
		Title:          "Book " + id,
		AcquisitionURI: "http://library.example/content/" + id,
		RevokeURI:      revokeBase + id,
		Availability:   feed.Availability{Kind: feed.AvailabilityLoaned},
	}
}

func drain(events <-chan registry.Event) []registry.Event {
	var out []registry.Event
	for {
		select {
		case e := <-events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestBooksSync_KermitScenario(t *testing.T) {
	f := newFixture(t)
	_, account := f.kermit(t)
	setCredentials(t, account)

	events, cancel := f.registry.Subscribe(64)
	defer cancel()

	f.transport.respondFeed(t, loansURI, loaned("a"), loaned("b"), loaned("c"))
	result, err := f.ctrl.BooksSync(context.Background(), account)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, result.Added)
	assert.Equal(t, 3, f.registry.Len())
	drain(events)

	f.transport.respondFeed(t, loansURI, loaned("b"))
	result, err = f.ctrl.BooksSync(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, result.Updated)
	assert.ElementsMatch(t, []string{"a", "c"}, result.Removed)
	assert.NoError(t, result.Err())
	assert.Equal(t, 1, f.registry.Len())

	var removed []string
	for _, e := range drain(events) {
		if e.Kind == registry.EventBookRemoved {
			removed = append(removed, e.BookID)
		}
	}
	assert.ElementsMatch(t, []string{"a", "c"}, removed)

	ids, err := account.Books().IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	require.Len(t, f.transport.auths, 2)
	assert.Equal(t, &transport.Auth{Username: "1234", Password: "abcd"}, f.transport.auths[0])
}

func TestBooksSync_NoCredentialsSkips(t *testing.T) {
	f := newFixture(t)
	_, account := f.kermit(t)

	result, err := f.ctrl.BooksSync(context.Background(), account)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Zero(t, f.transport.callCount())

	_, ok := account.Credentials()
	assert.False(t, ok)
}

func TestBooksSync_UnauthorizedClearsCredentials(t *testing.T) {
	f := newFixture(t)
	_, account := f.kermit(t)
	setCredentials(t, account)
	f.transport.respond(loansURI, http.StatusUnauthorized, nil)

	_, err := f.ctrl.BooksSync(context.Background(), account)
	require.Error(t, err)
	assert.Equal(t, FailureCredentialsIncorrect, KindOf(err))
	assert.False(t, IsRetryable(err))

	_, ok := account.Credentials()
	assert.False(t, ok)
}

func TestBooksSync_ServerAndNetworkFailures(t *testing.T) {
	f := newFixture(t)
	_, account := f.kermit(t)
	setCredentials(t, account)

	f.transport.respond(loansURI, http.StatusInternalServerError, nil)
	_, err := f.ctrl.BooksSync(context.Background(), account)
	assert.Equal(t, FailureServer, KindOf(err))
	assert.True(t, IsRetryable(err))

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, http.StatusInternalServerError, failure.Status)

	f.transport.errs[loansURI] = errors.New("connection refused")
	_, err = f.ctrl.BooksSync(context.Background(), account)
	assert.Equal(t, FailureNetwork, KindOf(err))

	_, ok := account.Credentials()
	assert.True(t, ok, "only a 401 clears credentials")
}

func TestBooksSync_ParseFailureIsAudited(t *testing.T) {
	f := newFixture(t)
	_, account := f.kermit(t)
	setCredentials(t, account)
	f.transport.respond(loansURI, http.StatusOK, []byte("<html>maintenance</html>"))

	_, err := f.ctrl.BooksSync(context.Background(), account)
	assert.Equal(t, FailureParse, KindOf(err))
	assert.ErrorIs(t, err, feed.ErrParse)
	assert.Equal(t, []string{"sync " + loansURI}, f.auditor.records)
	assert.Zero(t, f.registry.Len())
}

func TestBooksSync_OpenProviderNeedsNoCredentials(t *testing.T) {
	f := newFixture(t)
	p, _ := f.kermit(t)
	open, err := p.Accounts().CreateAccount(mustProvider(t, f, openID))
	require.NoError(t, err)

	f.transport.respondFeed(t, openFeed, feed.Entry{ID: "free", Title: "Free", Availability: feed.Availability{Kind: feed.AvailabilityOpenAccess}})
	result, err := f.ctrl.BooksSync(context.Background(), open)
	require.NoError(t, err)
	assert.Equal(t, []string{"free"}, result.Added)
	assert.Nil(t, f.transport.auths[0])
}

func TestBooksSync_SameAccountIsSerialized(t *testing.T) {
	f := newFixture(t)
	_, account := f.kermit(t)
	setCredentials(t, account)
	f.transport.respondFeed(t, loansURI, loaned("a"))
	f.transport.delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ctrl.BooksSync(context.Background(), account)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, f.transport.callCount())
	assert.Equal(t, 1, f.transport.maxFlight)
	assert.Equal(t, 1, f.registry.Len())
}

func mustProvider(t *testing.T, f *fixture, id string) entities.ProviderDescription {
	t.Helper()
	p, ok := f.catalog.ProviderByID(id)
	require.True(t, ok)
	return p
}

func TestCurrentAccount(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.ctrl.CurrentAccount(0)
	assert.Equal(t, FailureProfileConfiguration, KindOf(err))

	p, account := f.kermit(t)
	gotProfile, gotAccount, err := f.ctrl.CurrentAccount(account.ID())
	require.NoError(t, err)
	assert.Same(t, p, gotProfile)
	assert.Same(t, account, gotAccount)

	_, _, err = f.ctrl.CurrentAccount(99)
	assert.Equal(t, FailureProfileConfiguration, KindOf(err))

	_, gotAccount, err = f.ctrl.ResolveAccount(p.ID(), account.ID())
	require.NoError(t, err)
	assert.Same(t, account, gotAccount)

	_, _, err = f.ctrl.ResolveAccount(42, 0)
	assert.Equal(t, FailureProfileConfiguration, KindOf(err))
}

func TestLoadAccount(t *testing.T) {
	f := newFixture(t)
	_, account := f.kermit(t)
	_, _, err := account.Books().Put(loaned("a"))
	require.NoError(t, err)
	_, _, err = account.Books().Put(loaned("b"))
	require.NoError(t, err)

	n, err := f.ctrl.LoadAccount(account)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec, err := f.registry.BookOrError("a")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusLoaned, rec.Status)
	assert.Equal(t, int(account.ID()), rec.Book.AccountID)
}

func entitiesCredentials(barcode, pin string) entities.Credentials {
	return entities.NewCredentials(barcode, pin)
}

func withAdobe(c entities.Credentials) entities.Credentials {
	return c.WithAdobe(entities.AdobeCredentials{VendorID: "vendor", ClientToken: "token"})
}
