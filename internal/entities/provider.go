package entities

// AuthenticationDescription describes how a provider authenticates patrons.
type AuthenticationDescription struct {
	// LoginURI is requested with the patron's credentials to validate them.
	LoginURI string
	// PassCodeLength is the required PIN length; 0 means any length.
	PassCodeLength int
	// PassCodeMayContainLetters allows non-digit PINs.
	PassCodeMayContainLetters bool
	// BarcodeLabel and PINLabel are display hints for login forms.
	BarcodeLabel string
	PINLabel     string
}

// ValidPIN reports whether pin satisfies the provider's passcode constraints.
func (a AuthenticationDescription) ValidPIN(pin string) bool {
	if a.PassCodeLength > 0 && len(pin) != a.PassCodeLength {
		return false
	}
	if !a.PassCodeMayContainLetters {
		for _, r := range pin {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// ProviderDescription is an immutable descriptor of a library/catalog source.
// The ID is an opaque URI used only for equality and lookup.
type ProviderDescription struct {
	ID          string
	DisplayName string
	Subtitle    string
	LogoURI     string

	// CatalogURI is the catalog root. When the provider splits its catalog by age,
	// CatalogURIUnder13 and CatalogURI13AndOver take precedence.
	CatalogURI          string
	CatalogURIUnder13   string
	CatalogURI13AndOver string

	// LoansURI lists the patron's current loans and holds.
	LoansURI string

	// Authentication is nil for providers that need no login.
	Authentication *AuthenticationDescription

	SupportsSync         bool
	SupportsReservations bool
	SupportsDRM          bool
	AddAutomatically     bool
}

// RequiresAuthentication reports whether accounts for this provider need credentials.
func (p ProviderDescription) RequiresAuthentication() bool {
	return p.Authentication != nil
}

// CatalogURIForAge returns the catalog URI appropriate for a patron of the given age.
// A negative age means unknown and selects the 13-and-over catalog.
func (p ProviderDescription) CatalogURIForAge(age int) string {
	if age >= 0 && age < 13 && p.CatalogURIUnder13 != "" {
		return p.CatalogURIUnder13
	}
	if p.CatalogURI13AndOver != "" {
		return p.CatalogURI13AndOver
	}
	return p.CatalogURI
}

// SyncURI returns the URI a books sync reads: the loans feed if there is one,
// otherwise the catalog for a patron of the given age.
func (p ProviderDescription) SyncURI(age int) string {
	if p.LoansURI != "" {
		return p.LoansURI
	}
	return p.CatalogURIForAge(age)
}
