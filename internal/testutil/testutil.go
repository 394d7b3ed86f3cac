// Package testutil provides shared test helpers for config files and a fake Sounds API.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetupTestConfig writes a config file using the in-memory cache driver and
// returns its path.
func SetupTestConfig(t *testing.T, tmpDir string) string {
	t.Helper()

	configContent := `server:
  port: 18080
cache:
  driver: memory
  list_limit: 20
admin:
  username: admin
`
	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configContent), 0644))
	return cfgPath
}

// SetupTestConfigWithAPI writes a config file pointing at apiURL. The API key
// is set through the environment for the duration of the test.
func SetupTestConfigWithAPI(t *testing.T, tmpDir, apiURL string) string {
	t.Helper()
	cfgPath := SetupTestConfig(t, tmpDir)

	content, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	content = append(content, []byte(fmt.Sprintf("api:\n  url: %s\n  client_name: bitesize-test\n", apiURL))...)
	require.NoError(t, os.WriteFile(cfgPath, content, 0644))
	t.Setenv("BITESIZE_API_KEY", SoundsAPIKey)
	return cfgPath
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SoundsAPIKey is the key the fake Sounds API accepts.
const SoundsAPIKey = "test-api-key"

// SoundsAPI is a fake Sounds API served over TLS.
type SoundsAPI struct {
	Server *httptest.Server

	mu       sync.Mutex
	sounds   map[int64]any
	statuses map[int64]int
	requests map[int64]int
}

// NewSoundsAPI starts a fake Sounds API. Unknown IDs answer 404 and a wrong
// API key answers 401.
func NewSoundsAPI(t *testing.T) *SoundsAPI {
	t.Helper()
	api := &SoundsAPI{
		sounds:   make(map[int64]any),
		statuses: make(map[int64]int),
		requests: make(map[int64]int),
	}
	api.Server = httptest.NewTLSServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.Server.Close)
	return api
}

// AddSound registers the payload returned for id.
func (api *SoundsAPI) AddSound(id int64, payload any) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.sounds[id] = payload
}

// FailSound makes lookups of id answer status.
func (api *SoundsAPI) FailSound(id int64, status int) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.statuses[id] = status
}

// Requests returns how many lookups of id were served.
func (api *SoundsAPI) Requests(id int64) int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.requests[id]
}

// URL returns the base URL of the fake API.
func (api *SoundsAPI) URL() string {
	return api.Server.URL
}

// Client returns an HTTP client trusting the fake API's certificate.
func (api *SoundsAPI) Client() *http.Client {
	return api.Server.Client()
}

func (api *SoundsAPI) serve(w http.ResponseWriter, r *http.Request) {
	idText, ok := strings.CutPrefix(r.URL.Path, "/api/sounds/")
	id, err := strconv.ParseInt(idText, 10, 64)
	if !ok || err != nil || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	api.mu.Lock()
	api.requests[id]++
	payload, found := api.sounds[id]
	status, failing := api.statuses[id]
	api.mu.Unlock()

	switch {
	case r.Header.Get("X-API-Key") != SoundsAPIKey:
		w.WriteHeader(http.StatusUnauthorized)
	case failing:
		w.WriteHeader(status)
	case !found:
		http.NotFound(w, r)
	default:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}
}
