// Package transport fetches provider documents over HTTP.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mrlokans/patron/internal/entities"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Patron/1.0"

	// maxBodySize caps how much of a response is read into memory.
	maxBodySize = 64 << 20
)

// Auth carries the authorization to send with a request. A non-empty Token
// is sent as a bearer token; otherwise Username/Password use HTTP Basic.
type Auth struct {
	Username string
	Password string
	Token    string
}

// AuthFromCredentials builds request authorization from account credentials,
// preferring the OAuth token when the provider issued one.
func AuthFromCredentials(c entities.Credentials) *Auth {
	if c.OAuthToken != "" {
		return &Auth{Token: c.OAuthToken}
	}
	return &Auth{Username: c.Barcode, Password: c.PIN}
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Transport fetches a URI. An error means no response was received at all;
// non-2xx responses are returned with a nil error for the caller to classify.
type Transport interface {
	Fetch(ctx context.Context, uri string, auth *Auth) (*Response, error)
}

// HTTPTransport implements Transport on net/http.
type HTTPTransport struct {
	httpClient *http.Client
	userAgent  string
}

// NewHTTPTransport creates a transport with the given request timeout and user agent.
func NewHTTPTransport(timeout time.Duration, userAgent string) *HTTPTransport {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPTransport{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// Fetch issues a GET for uri.
func (t *HTTPTransport) Fetch(ctx context.Context, uri string, auth *Auth) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/json, application/atom+xml;q=0.9, */*;q=0.1")
	if auth != nil {
		if auth.Token != "" {
			req.Header.Set("Authorization", "Bearer "+auth.Token)
		} else {
			req.SetBasicAuth(auth.Username, auth.Password)
		}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
	}, nil
}
