package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/patron/internal/entities"
)

func TestHTTPTransport_Fetch(t *testing.T) {
	tests := []struct {
		name       string
		auth       *Auth
		statusCode int
		wantHeader string
	}{
		{
			name:       "basic auth",
			auth:       AuthFromCredentials(entities.NewCredentials("1234", "abcd")),
			statusCode: http.StatusOK,
			wantHeader: "Basic MTIzNDphYmNk",
		},
		{
			name:       "bearer token",
			auth:       AuthFromCredentials(entities.NewCredentials("1234", "abcd").WithOAuthToken("tok")),
			statusCode: http.StatusOK,
			wantHeader: "Bearer tok",
		},
		{
			name:       "anonymous",
			statusCode: http.StatusOK,
		},
		{
			name:       "unauthorized is not an error",
			auth:       &Auth{Username: "x", Password: "y"},
			statusCode: http.StatusUnauthorized,
			wantHeader: "Basic eDp5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantHeader, r.Header.Get("Authorization"))
				assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
				w.Header().Set("X-Test", "yes")
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte("body"))
			}))
			defer server.Close()

			tr := NewHTTPTransport(5*time.Second, "test-agent")
			resp, err := tr.Fetch(context.Background(), server.URL, tt.auth)
			require.NoError(t, err)

			assert.Equal(t, tt.statusCode, resp.Status)
			assert.Equal(t, "body", string(resp.Body))
			assert.Equal(t, "yes", resp.Header.Get("X-Test"))
			assert.Equal(t, tt.statusCode/100 == 2, resp.OK())
		})
	}
}

func TestHTTPTransport_FetchConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	tr := NewHTTPTransport(time.Second, "")
	_, err := tr.Fetch(context.Background(), url, nil)
	assert.Error(t, err)
}

func TestHTTPTransport_FetchCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	tr := NewHTTPTransport(5*time.Second, "")
	_, err := tr.Fetch(ctx, server.URL, nil)
	assert.Error(t, err)
}
