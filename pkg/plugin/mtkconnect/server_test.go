package mtkconnect

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeKey is an API key as the fake server knows it, including its full value.
type fakeKey struct {
	APIKey
	value string
}

// fakeServer is a small in-memory MTK Connect API.
type fakeServer struct {
	mu sync.Mutex

	username string
	userID   string
	keys     []fakeKey

	nextID int
	calls  []string

	failCreate int
	failDelete int
	failUsers  int

	*httptest.Server
}

func newFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{
		username: "svc-sdv",
		userID:   "u-1",
		nextID:   1,
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

// testKeyName is the name the test client gives the keys it creates.
const testKeyName = "sdv-admin-test"

// addKey adds a key created by the test client with the given value and
// creation time and returns it.
func (f *fakeServer) addKey(value string, created time.Time) fakeKey {
	return f.addNamedKey(testKeyName, value, created)
}

// addNamedKey adds a key with the given name, as created by someone else.
func (f *fakeServer) addNamedKey(name, value string, created time.Time) fakeKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addKeyLocked(name, value, created)
}

func (f *fakeServer) addKeyLocked(name, value string, created time.Time) fakeKey {
	k := fakeKey{
		APIKey: APIKey{
			ID:        fmt.Sprintf("k-%d", f.nextID),
			Name:      name,
			Prefix:    value[:9],
			CreatedAt: created,
		},
		value: value,
	}
	f.nextID++
	f.keys = append(f.keys, k)
	return k
}

func (f *fakeServer) keyIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.keys))
	for i, k := range f.keys {
		ids[i] = k.ID
	}
	return ids
}

func (f *fakeServer) authorized(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok || user != f.username {
		return false
	}
	for _, k := range f.keys {
		if k.value == pass {
			return true
		}
	}
	return false
}

func (f *fakeServer) publicKeys() []APIKey {
	keys := make([]APIKey, len(f.keys))
	for i, k := range f.keys {
		keys[i] = k.APIKey
	}
	return keys
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	const base = "/mtk-connect/api/v1"
	path := strings.TrimPrefix(r.URL.Path, base)

	if path == "/config/version" {
		writeJSON(w, http.StatusOK, Version{Version: "1.2.3"})
		return
	}

	if !f.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	keysPath := "/users/" + f.userID + "/api-keys"
	switch {
	case r.Method == http.MethodGet && path == "/users/current":
		writeJSON(w, http.StatusOK, User{
			ID:       f.userID,
			Username: f.username,
			APIKeys:  f.publicKeys(),
		})

	case r.Method == http.MethodGet && path == "/users":
		if f.failUsers > 0 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		users := []User{
			{ID: f.userID, Username: f.username},
			{ID: "u-2", Username: "jane.doe"},
		}
		q := r.URL.Query().Get("q")
		var found []User
		for _, u := range users {
			if strings.Contains(u.Username, q) {
				found = append(found, u)
			}
		}
		writeJSON(w, http.StatusOK, found)

	case r.Method == http.MethodGet && path == keysPath:
		writeJSON(w, http.StatusOK, f.publicKeys())

	case r.Method == http.MethodPost && path == keysPath:
		if f.failCreate > 0 {
			http.Error(w, "quota exceeded", http.StatusConflict)
			return
		}
		var req struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		value := fmt.Sprintf("newkey%03d-secret", f.nextID)
		k := f.addKeyLocked(req.Name, value, time.Now().UTC())
		created := k.APIKey
		created.Key = value
		writeJSON(w, http.StatusCreated, created)

	case r.Method == http.MethodDelete && strings.HasPrefix(path, keysPath+"/"):
		if f.failDelete > 0 {
			http.Error(w, "nope", http.StatusForbidden)
			return
		}
		id := strings.TrimPrefix(path, keysPath+"/")
		for i, k := range f.keys {
			if k.ID == id {
				f.keys = append(f.keys[:i], f.keys[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		http.Error(w, "no such key", http.StatusNotFound)

	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}
