package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProviderDescription_CatalogURIForAge(t *testing.T) {
	split := ProviderDescription{
		CatalogURI:          "https://example.org/catalog",
		CatalogURIUnder13:   "https://example.org/kids",
		CatalogURI13AndOver: "https://example.org/adults",
	}
	plain := ProviderDescription{CatalogURI: "https://example.org/catalog"}

	tests := []struct {
		name     string
		provider ProviderDescription
		age      int
		want     string
	}{
		{"child on split catalog", split, 9, "https://example.org/kids"},
		{"adult on split catalog", split, 40, "https://example.org/adults"},
		{"unknown age on split catalog", split, -1, "https://example.org/adults"},
		{"child on plain catalog", plain, 9, "https://example.org/catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.provider.CatalogURIForAge(tt.age))
		})
	}
}

func TestProviderDescription_SyncURI(t *testing.T) {
	p := ProviderDescription{CatalogURI: "c", CatalogURIUnder13: "kids"}
	assert.Equal(t, "c", p.SyncURI(-1))
	assert.Equal(t, "kids", p.SyncURI(8))
	p.LoansURI = "l"
	assert.Equal(t, "l", p.SyncURI(8))
}

func TestAuthenticationDescription_ValidPIN(t *testing.T) {
	numeric4 := AuthenticationDescription{PassCodeLength: 4}
	assert.True(t, numeric4.ValidPIN("1234"))
	assert.False(t, numeric4.ValidPIN("123"))
	assert.False(t, numeric4.ValidPIN("abcd"))

	letters := AuthenticationDescription{PassCodeMayContainLetters: true}
	assert.True(t, letters.ValidPIN("abcd"))
	assert.True(t, letters.ValidPIN(""))
}

func TestCredentials_WithCopies(t *testing.T) {
	base := NewCredentials("1234", "abcd")
	withToken := base.WithOAuthToken("tok").WithPatron("p-1")

	assert.Empty(t, base.OAuthToken, "original value must not change")
	assert.Equal(t, "tok", withToken.OAuthToken)
	assert.Equal(t, "p-1", withToken.Patron)

	adobe := AdobeCredentials{VendorID: "v", ClientToken: "ct"}
	withAdobe := base.WithAdobe(adobe)
	activated := withAdobe.Adobe.WithPostActivation(AdobePostActivation{DeviceID: "d", UserID: "u"})

	assert.False(t, withAdobe.Adobe.Activated())
	assert.True(t, activated.Activated())
	assert.Nil(t, withAdobe.WithoutAdobe().Adobe)
	assert.NotNil(t, withAdobe.Adobe)
}

func TestProfilePreferences_Age(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, -1, ProfilePreferences{}.Age(now))

	dob := time.Date(2010, 6, 16, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 13, ProfilePreferences{DateOfBirth: &dob}.Age(now))

	dob = time.Date(2010, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 14, ProfilePreferences{DateOfBirth: &dob}.Age(now))
}
