package accounts

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mrlokans/patron/internal/entities"
)

// Description is the persisted state of one account.
type Description struct {
	Provider    string
	Credentials *entities.Credentials
}

type accountDocument struct {
	Provider    string               `json:"provider"`
	Credentials *credentialsDocument `json:"credentials,omitempty"`
}

type credentialsDocument struct {
	Username     string         `json:"username"`
	Password     string         `json:"password"`
	OAuthToken   string         `json:"oauth_token,omitempty"`
	Patron       string         `json:"patron,omitempty"`
	AuthProvider string         `json:"auth_provider,omitempty"`
	Adobe        *adobeDocument `json:"adobe_credentials,omitempty"`
}

type adobeDocument struct {
	VendorID         string              `json:"vendor_id"`
	ClientToken      string              `json:"client_token"`
	DeviceManagerURI string              `json:"device_manager_uri,omitempty"`
	Activation       *activationDocument `json:"activation,omitempty"`
}

type activationDocument struct {
	DeviceID string `json:"device_id"`
	UserID   string `json:"user_id"`
}

func encodeDescription(d Description) ([]byte, error) {
	doc := accountDocument{Provider: d.Provider}
	if c := d.Credentials; c != nil {
		doc.Credentials = &credentialsDocument{
			Username:     c.Barcode,
			Password:     c.PIN,
			OAuthToken:   c.OAuthToken,
			Patron:       c.Patron,
			AuthProvider: c.AuthenticationProvider,
		}
		if a := c.Adobe; a != nil {
			doc.Credentials.Adobe = &adobeDocument{
				VendorID:         a.VendorID,
				ClientToken:      a.ClientToken,
				DeviceManagerURI: a.DeviceManagerURI,
			}
			if p := a.PostActivation; p != nil {
				doc.Credentials.Adobe.Activation = &activationDocument{DeviceID: p.DeviceID, UserID: p.UserID}
			}
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

func decodeDescription(data []byte) (Description, error) {
	var doc accountDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Description{}, fmt.Errorf("decode account document: %w", err)
	}
	if doc.Provider == "" {
		return Description{}, errors.New("account document has no provider")
	}

	d := Description{Provider: doc.Provider}
	if c := doc.Credentials; c != nil {
		creds := entities.NewCredentials(c.Username, c.Password).
			WithOAuthToken(c.OAuthToken).
			WithPatron(c.Patron).
			WithAuthenticationProvider(c.AuthProvider)
		if a := c.Adobe; a != nil {
			adobe := entities.AdobeCredentials{
				VendorID:         a.VendorID,
				ClientToken:      a.ClientToken,
				DeviceManagerURI: a.DeviceManagerURI,
			}
			if p := a.Activation; p != nil {
				adobe = adobe.WithPostActivation(entities.AdobePostActivation{DeviceID: p.DeviceID, UserID: p.UserID})
			}
			creds = creds.WithAdobe(adobe)
		}
		d.Credentials = &creds
	}
	return d, nil
}
