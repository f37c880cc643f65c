package entities

// Credentials are a patron's authentication credentials for one account.
// Values are immutable: the With* methods return modified copies.
type Credentials struct {
	Barcode string
	PIN     string

	// Optional fields; empty means absent.
	OAuthToken             string
	Patron                 string
	AuthenticationProvider string

	Adobe *AdobeCredentials
}

// NewCredentials returns credentials holding only a barcode and PIN.
func NewCredentials(barcode, pin string) Credentials {
	return Credentials{Barcode: barcode, PIN: pin}
}

func (c Credentials) WithOAuthToken(token string) Credentials {
	c.OAuthToken = token
	return c
}

func (c Credentials) WithPatron(patron string) Credentials {
	c.Patron = patron
	return c
}

func (c Credentials) WithAuthenticationProvider(provider string) Credentials {
	c.AuthenticationProvider = provider
	return c
}

// WithAdobe attaches DRM pre-activation credentials. The argument is copied.
func (c Credentials) WithAdobe(adobe AdobeCredentials) Credentials {
	c.Adobe = &adobe
	return c
}

// WithoutAdobe drops any DRM credentials.
func (c Credentials) WithoutAdobe() Credentials {
	c.Adobe = nil
	return c
}

// AdobeCredentials are DRM pre-activation credentials issued by the provider.
type AdobeCredentials struct {
	VendorID         string
	ClientToken      string
	DeviceManagerURI string

	// PostActivation is set once an activation round-trip succeeded.
	PostActivation *AdobePostActivation
}

func (a AdobeCredentials) WithPostActivation(post AdobePostActivation) AdobeCredentials {
	a.PostActivation = &post
	return a
}

// Activated reports whether a device activation has been recorded.
func (a AdobeCredentials) Activated() bool {
	return a.PostActivation != nil
}

// AdobePostActivation identifies an activated device.
type AdobePostActivation struct {
	DeviceID string
	UserID   string
}
