// Package providers loads the catalog of account providers and any bundled credentials.
package providers

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mrlokans/patron/internal/entities"
)

//go:embed providers.yaml
var bundledProviders []byte

// ErrUnknownProvider is returned when a provider ID is not in the registry.
var ErrUnknownProvider = errors.New("unknown provider")

type fileDocument struct {
	Default   string             `yaml:"default"`
	Providers []providerDocument `yaml:"providers"`
}

type providerDocument struct {
	ID                   string                  `yaml:"id"`
	DisplayName          string                  `yaml:"displayName"`
	Subtitle             string                  `yaml:"subtitle"`
	LogoURI              string                  `yaml:"logoURI"`
	CatalogURI           string                  `yaml:"catalogURI"`
	CatalogURIUnder13    string                  `yaml:"catalogURIUnder13"`
	CatalogURI13AndOver  string                  `yaml:"catalogURI13AndOver"`
	LoansURI             string                  `yaml:"loansURI"`
	SupportsSync         bool                    `yaml:"supportsSync"`
	SupportsReservations bool                    `yaml:"supportsReservations"`
	SupportsDRM          bool                    `yaml:"supportsDRM"`
	AddAutomatically     bool                    `yaml:"addAutomatically"`
	Authentication       *authenticationDocument `yaml:"authentication"`
}

type authenticationDocument struct {
	LoginURI                  string `yaml:"loginURI"`
	PassCodeLength            int    `yaml:"passCodeLength"`
	PassCodeMayContainLetters bool   `yaml:"passCodeMayContainLetters"`
	BarcodeLabel              string `yaml:"barcodeLabel"`
	PINLabel                  string `yaml:"pinLabel"`
}

func (d providerDocument) toDescription() entities.ProviderDescription {
	p := entities.ProviderDescription{
		ID:                   d.ID,
		DisplayName:          d.DisplayName,
		Subtitle:             d.Subtitle,
		LogoURI:              d.LogoURI,
		CatalogURI:           d.CatalogURI,
		CatalogURIUnder13:    d.CatalogURIUnder13,
		CatalogURI13AndOver:  d.CatalogURI13AndOver,
		LoansURI:             d.LoansURI,
		SupportsSync:         d.SupportsSync,
		SupportsReservations: d.SupportsReservations,
		SupportsDRM:          d.SupportsDRM,
		AddAutomatically:     d.AddAutomatically,
	}
	if a := d.Authentication; a != nil {
		p.Authentication = &entities.AuthenticationDescription{
			LoginURI:                  a.LoginURI,
			PassCodeLength:            a.PassCodeLength,
			PassCodeMayContainLetters: a.PassCodeMayContainLetters,
			BarcodeLabel:              a.BarcodeLabel,
			PINLabel:                  a.PINLabel,
		}
	}
	return p
}

// Registry is an immutable set of providers with one designated default.
type Registry struct {
	byID      map[string]entities.ProviderDescription
	order     []string
	defaultID string
}

// NewRegistry builds a registry. An empty defaultID selects the first provider.
func NewRegistry(list []entities.ProviderDescription, defaultID string) (*Registry, error) {
	if len(list) == 0 {
		return nil, errors.New("provider registry is empty")
	}

	r := &Registry{byID: make(map[string]entities.ProviderDescription, len(list))}
	for _, p := range list {
		if p.ID == "" {
			return nil, fmt.Errorf("provider %q has no id", p.DisplayName)
		}
		if _, exists := r.byID[p.ID]; exists {
			return nil, fmt.Errorf("duplicate provider id %s", p.ID)
		}
		r.byID[p.ID] = p
		r.order = append(r.order, p.ID)
	}

	if defaultID == "" {
		defaultID = r.order[0]
	}
	if _, ok := r.byID[defaultID]; !ok {
		return nil, fmt.Errorf("%w: default provider %s", ErrUnknownProvider, defaultID)
	}
	r.defaultID = defaultID

	return r, nil
}

// Parse reads a registry from YAML. A non-empty defaultOverride replaces the file's default.
func Parse(data []byte, defaultOverride string) (*Registry, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse providers: %w", err)
	}

	list := make([]entities.ProviderDescription, 0, len(doc.Providers))
	for _, p := range doc.Providers {
		list = append(list, p.toDescription())
	}

	defaultID := doc.Default
	if defaultOverride != "" {
		defaultID = defaultOverride
	}
	return NewRegistry(list, defaultID)
}

// Load reads the registry from path, or the bundled registry when path is empty.
func Load(path, defaultOverride string) (*Registry, error) {
	if path == "" {
		return Parse(bundledProviders, defaultOverride)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers: %w", err)
	}
	return Parse(data, defaultOverride)
}

// ProviderByID looks up a provider by its URI.
func (r *Registry) ProviderByID(id string) (entities.ProviderDescription, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Providers returns every provider in file order.
func (r *Registry) Providers() []entities.ProviderDescription {
	out := make([]entities.ProviderDescription, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// AutomaticProviders returns the providers added to every new profile.
func (r *Registry) AutomaticProviders() []entities.ProviderDescription {
	var out []entities.ProviderDescription
	for _, id := range r.order {
		if p := r.byID[id]; p.AddAutomatically {
			out = append(out, p)
		}
	}
	return out
}

// DefaultProvider returns the provider used when a profile would otherwise have no account.
func (r *Registry) DefaultProvider() entities.ProviderDescription {
	return r.byID[r.defaultID]
}
