package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/controller"
	"github.com/mrlokans/patron/internal/entities"
	"github.com/mrlokans/patron/internal/profiles"
	"github.com/mrlokans/patron/internal/tasks"
)

// AccountsController handles the accounts of the current profile.
type AccountsController struct {
	ops       AccountOperations
	providers ProviderCatalog
	books     BookLister
	queue     TaskQueue
}

// NewAccountsController creates an AccountsController. queue may be nil, in which case
// syncs run inside the request.
func NewAccountsController(ops AccountOperations, providers ProviderCatalog, books BookLister, queue TaskQueue) *AccountsController {
	return &AccountsController{ops: ops, providers: providers, books: books, queue: queue}
}

// ProviderView is the JSON representation of a provider.
type ProviderView struct {
	ID                     string `json:"id"`
	DisplayName            string `json:"display_name"`
	Subtitle               string `json:"subtitle,omitempty"`
	RequiresAuthentication bool   `json:"requires_authentication"`
	SupportsReservations   bool   `json:"supports_reservations"`
	BarcodeLabel           string `json:"barcode_label,omitempty"`
	PINLabel               string `json:"pin_label,omitempty"`
}

func newProviderView(p entities.ProviderDescription) ProviderView {
	view := ProviderView{
		ID:                     p.ID,
		DisplayName:            p.DisplayName,
		Subtitle:               p.Subtitle,
		RequiresAuthentication: p.RequiresAuthentication(),
		SupportsReservations:   p.SupportsReservations,
	}
	if p.Authentication != nil {
		view.BarcodeLabel = p.Authentication.BarcodeLabel
		view.PINLabel = p.Authentication.PINLabel
	}
	return view
}

// AccountView is the JSON representation of an account. Secrets are never included.
type AccountView struct {
	ID                  int          `json:"id"`
	Provider            ProviderView `json:"provider"`
	RequiresCredentials bool         `json:"requires_credentials"`
	LoggedIn            bool         `json:"logged_in"`
	Barcode             string       `json:"barcode,omitempty"`
	DRMActivated        bool         `json:"drm_activated"`
	Books               int          `json:"books"`
}

func (ac *AccountsController) accountView(a *accounts.Account) AccountView {
	view := AccountView{
		ID:                  int(a.ID()),
		Provider:            newProviderView(a.Provider()),
		RequiresCredentials: a.RequiresCredentials(),
		Books:               len(ac.books.BooksForAccount(int(a.ID()))),
	}
	if creds, ok := a.Credentials(); ok {
		view.LoggedIn = true
		view.Barcode = creds.Barcode
		view.DRMActivated = creds.Adobe != nil && creds.Adobe.Activated()
	}
	return view
}

// ListProviders handles GET /api/providers
func (ac *AccountsController) ListProviders(c *gin.Context) {
	list := ac.providers.Providers()
	views := make([]ProviderView, 0, len(list))
	for _, p := range list {
		views = append(views, newProviderView(p))
	}
	c.JSON(http.StatusOK, gin.H{"providers": views, "count": len(views)})
}

// ListAccounts handles GET /api/accounts
func (ac *AccountsController) ListAccounts(c *gin.Context) {
	p, err := ac.ops.CurrentProfile()
	if err != nil {
		respondFailure(c, err, "current profile")
		return
	}
	list := p.Accounts().Accounts()
	views := make([]AccountView, 0, len(list))
	for _, a := range list {
		views = append(views, ac.accountView(a))
	}
	c.JSON(http.StatusOK, gin.H{"profile_id": int(p.ID()), "accounts": views, "count": len(views)})
}

// CreateAccountRequest is the body of POST /api/accounts.
type CreateAccountRequest struct {
	ProviderID string `json:"provider_id" binding:"required"`
}

// CreateAccount handles POST /api/accounts
func (ac *AccountsController) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "provider_id is required")
		return
	}
	provider, ok := ac.providers.ProviderByID(req.ProviderID)
	if !ok {
		respondNotFound(c, "provider")
		return
	}
	p, err := ac.ops.CurrentProfile()
	if err != nil {
		respondFailure(c, err, "current profile")
		return
	}
	account, err := p.Accounts().CreateAccount(provider)
	if err != nil {
		respondFailure(c, err, "create account")
		return
	}
	respondCreated(c, ac.accountView(account))
}

// DeleteAccount handles DELETE /api/accounts/:id
// The registry is reloaded afterwards so the account's books disappear from it.
func (ac *AccountsController) DeleteAccount(c *gin.Context) {
	p, account, ok := ac.account(c)
	if !ok {
		return
	}
	if _, err := p.Accounts().DeleteAccountByProvider(account.Provider().ID); err != nil {
		respondFailure(c, err, "delete account")
		return
	}
	if _, err := ac.ops.ActivateProfile(p); err != nil {
		respondFailure(c, err, "reload profile")
		return
	}
	respondSuccess(c, "account deleted")
}

// AdobeRequest carries DRM pre-activation credentials.
type AdobeRequest struct {
	VendorID         string `json:"vendor_id"`
	ClientToken      string `json:"client_token"`
	DeviceManagerURI string `json:"device_manager_uri"`
}

// LoginRequest is the body of POST /api/accounts/:id/login.
type LoginRequest struct {
	Barcode                string        `json:"barcode"`
	PIN                    string        `json:"pin"`
	OAuthToken             string        `json:"oauth_token"`
	Patron                 string        `json:"patron"`
	AuthenticationProvider string        `json:"authentication_provider"`
	Adobe                  *AdobeRequest `json:"adobe"`
}

func (r LoginRequest) credentials() entities.Credentials {
	creds := entities.NewCredentials(r.Barcode, r.PIN).
		WithOAuthToken(r.OAuthToken).
		WithPatron(r.Patron).
		WithAuthenticationProvider(r.AuthenticationProvider)
	if r.Adobe != nil {
		creds = creds.WithAdobe(entities.AdobeCredentials{
			VendorID:         r.Adobe.VendorID,
			ClientToken:      r.Adobe.ClientToken,
			DeviceManagerURI: r.Adobe.DeviceManagerURI,
		})
	}
	return creds
}

// Login handles POST /api/accounts/:id/login
// With ?async=true and a task queue the login is enqueued instead.
func (ac *AccountsController) Login(c *gin.Context) {
	p, account, ok := ac.account(c)
	if !ok {
		return
	}
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	if ac.queue != nil && c.Query("async") == "true" {
		enqueueTask(c, ac.queue, tasks.LoginTask{
			ProfileID:  int(p.ID()),
			AccountID:  int(account.ID()),
			Barcode:    req.Barcode,
			PIN:        req.PIN,
			OAuthToken: req.OAuthToken,
		}, "login enqueued")
		return
	}

	if err := ac.ops.Login(c.Request.Context(), account, req.credentials()); err != nil {
		respondFailure(c, err, "login")
		return
	}
	c.JSON(http.StatusOK, ac.accountView(account))
}

// Logout handles POST /api/accounts/:id/logout
func (ac *AccountsController) Logout(c *gin.Context) {
	_, account, ok := ac.account(c)
	if !ok {
		return
	}
	if err := ac.ops.Logout(account); err != nil {
		respondFailure(c, err, "logout")
		return
	}
	c.JSON(http.StatusOK, ac.accountView(account))
}

// SyncResultView is the JSON representation of a finished sync.
type SyncResultView struct {
	Skipped bool     `json:"skipped"`
	Added   []string `json:"added"`
	Updated []string `json:"updated"`
	Removed []string `json:"removed"`
	Errors  []string `json:"errors,omitempty"`
}

func newSyncResultView(r *controller.SyncResult) SyncResultView {
	view := SyncResultView{
		Skipped: r.Skipped,
		Added:   nonNil(r.Added),
		Updated: nonNil(r.Updated),
		Removed: nonNil(r.Removed),
	}
	for _, err := range r.EntryErrors {
		view.Errors = append(view.Errors, err.Error())
	}
	return view
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// SyncAccount handles POST /api/accounts/:id/sync
// The sync is enqueued when a task queue is configured and runs inline otherwise.
func (ac *AccountsController) SyncAccount(c *gin.Context) {
	p, account, ok := ac.account(c)
	if !ok {
		return
	}

	if ac.queue != nil {
		enqueueTask(c, ac.queue, tasks.SyncAccountTask{ProfileID: int(p.ID()), AccountID: int(account.ID())}, "sync enqueued")
		return
	}

	result, err := ac.ops.BooksSync(c.Request.Context(), account, controller.WithAge(p.Age()))
	if err != nil {
		respondFailure(c, err, "sync")
		return
	}
	c.JSON(http.StatusOK, newSyncResultView(result))
}

func (ac *AccountsController) account(c *gin.Context) (*profiles.Profile, *accounts.Account, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, nil, false
	}
	p, account, err := ac.ops.CurrentAccount(accounts.ID(id))
	if err != nil {
		respondFailure(c, err, "resolve account")
		return nil, nil, false
	}
	return p, account, true
}
