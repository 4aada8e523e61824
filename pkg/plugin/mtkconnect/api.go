package mtkconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Credentials are what the MTK Connect API authenticates with: a username and
// an API key sent as HTTP Basic authentication.
type Credentials struct {
	Username string
	Key      string
}

// Version is the document returned by the version endpoint.
type Version struct {
	Version string `json:"version"`
	Build   string `json:"build,omitempty"`
}

// APIKey describes an API key of a user. The full Key is only ever present in
// the response to creating a key; listings only carry the Prefix.
type APIKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Prefix    string    `json:"prefix"`
	Key       string    `json:"key,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is an MTK Connect user account.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	APIKeys  []APIKey `json:"apiKeys,omitempty"`
}

// StatusError is returned for every response with a status outside 2xx.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("MTK Connect %s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// maxErrorBody bounds how much of an error response is kept in a StatusError.
const maxErrorBody = 4096

// API is a thin client over the MTK Connect REST API. It holds the
// credentials it authenticates with; rotation replaces them in place with
// SetCredentials once a new key has been issued.
type API struct {
	hc      *http.Client
	baseURL string
	creds   Credentials
}

// NewAPI returns an API client for the given base URL, e.g.
// https://mtk.example.com/mtk-connect/api/v1.
func NewAPI(hc *http.Client, baseURL string, creds Credentials) *API {
	return &API{
		hc:      hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
	}
}

// Credentials returns the credentials currently in use.
func (a *API) Credentials() Credentials {
	return a.creds
}

// SetCredentials replaces the credentials used for every following call.
func (a *API) SetCredentials(creds Credentials) {
	a.creds = creds
}

// GetVersion returns the server version.
func (a *API) GetVersion(ctx context.Context) (*Version, error) {
	var v Version
	if err := a.do(ctx, http.MethodGet, "/config/version", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// CurrentUser returns the user the credentials belong to, including the
// metadata of the user's API keys.
func (a *API) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := a.do(ctx, http.MethodGet, "/users/current", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListAPIKeys returns the API keys of the given user.
func (a *API) ListAPIKeys(ctx context.Context, userID string) ([]APIKey, error) {
	var keys []APIKey
	if err := a.do(ctx, http.MethodGet, keysPath(userID), nil, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// CreateAPIKey issues a new API key for the given user. The returned key is
// the only place the full key value is ever available.
func (a *API) CreateAPIKey(ctx context.Context, userID, name string) (*APIKey, error) {
	req := struct {
		Name string `json:"name"`
	}{name}

	var k APIKey
	if err := a.do(ctx, http.MethodPost, keysPath(userID), req, &k); err != nil {
		return nil, err
	}
	if k.Key == "" {
		return nil, fmt.Errorf("MTK Connect created API key %q but returned no key value", k.ID)
	}
	return &k, nil
}

// DeleteAPIKey deletes an API key of the given user.
func (a *API) DeleteAPIKey(ctx context.Context, userID, keyID string) error {
	return a.do(ctx, http.MethodDelete, keysPath(userID)+"/"+url.PathEscape(keyID), nil, nil)
}

// QueryUsers returns the users matching filter.
func (a *API) QueryUsers(ctx context.Context, filter string) ([]User, error) {
	path := "/users"
	if filter != "" {
		path += "?" + url.Values{"q": {filter}}.Encode()
	}

	var users []User
	if err := a.do(ctx, http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func keysPath(userID string) string {
	return "/users/" + url.PathEscape(userID) + "/api-keys"
}

// do performs a single request. The body, when not nil, is sent as JSON. A
// non-2xx response is returned as a *StatusError. The response is decoded
// into out when out is not nil and the response has a body.
func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode MTK Connect request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to build MTK Connect request %s %s: %w", method, path, err)
	}
	req.SetBasicAuth(a.creds.Username, a.creds.Key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := a.hc.Do(req)
	if err != nil {
		return fmt.Errorf("MTK Connect %s %s failed: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: res.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode MTK Connect response to %s %s: %w", method, path, err)
	}
	return nil
}
