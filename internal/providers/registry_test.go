package providers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/patron/internal/entities"
)

func TestLoad_Bundled(t *testing.T) {
	r, err := Load("", "")
	require.NoError(t, err)

	assert.Len(t, r.Providers(), 2)
	assert.Equal(t, "Open Books", r.DefaultProvider().DisplayName)

	auto := r.AutomaticProviders()
	require.Len(t, auto, 1)
	assert.False(t, auto[0].RequiresAuthentication())

	library, ok := r.ProviderByID("urn:uuid:4d0f2cc8-6a4e-4c1b-9f3e-1e9a5a3f2b10")
	require.True(t, ok)
	require.NotNil(t, library.Authentication)
	assert.Equal(t, 4, library.Authentication.PassCodeLength)
	assert.Equal(t, "https://library.example.org/catalog/kids", library.CatalogURIForAge(8))
}

func TestLoad_DefaultOverride(t *testing.T) {
	r, err := Load("", "urn:uuid:4d0f2cc8-6a4e-4c1b-9f3e-1e9a5a3f2b10")
	require.NoError(t, err)
	assert.Equal(t, "Example Public Library", r.DefaultProvider().DisplayName)

	_, err = Load("", "urn:nope")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  - id: urn:a
    displayName: A
  - id: urn:b
    displayName: B
    addAutomatically: true
`), 0644))

	r, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "urn:a", r.DefaultProvider().ID, "first provider is the default when none is named")
	assert.Len(t, r.AutomaticProviders(), 1)
}

func TestNewRegistry_Validation(t *testing.T) {
	_, err := NewRegistry(nil, "")
	assert.Error(t, err)

	_, err = NewRegistry([]entities.ProviderDescription{{ID: "urn:a"}, {ID: "urn:a"}}, "")
	assert.Error(t, err)

	_, err = NewRegistry([]entities.ProviderDescription{{DisplayName: "no id"}}, "")
	assert.Error(t, err)
}

func TestLoadBundledCredentials(t *testing.T) {
	empty, err := LoadBundledCredentials("")
	require.NoError(t, err)
	_, ok := empty.CredentialsFor("urn:a")
	assert.False(t, ok)

	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
credentials:
  - provider: urn:a
    username: demo
    password: "0000"
`), 0644))

	bundled, err := LoadBundledCredentials(path)
	require.NoError(t, err)
	creds, ok := bundled.CredentialsFor("urn:a")
	require.True(t, ok)
	assert.Equal(t, entities.NewCredentials("demo", "0000"), creds)
}
