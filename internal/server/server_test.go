package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitesizeirish/bitesize-cursai/internal/admin"
	"github.com/bitesizeirish/bitesize-cursai/internal/block"
	"github.com/bitesizeirish/bitesize-cursai/internal/cache"
	"github.com/bitesizeirish/bitesize-cursai/internal/sound"
	"github.com/bitesizeirish/bitesize-cursai/internal/testutil"
)

type testEnv struct {
	api     *testutil.SoundsAPI
	handler http.Handler
}

func newTestEnv(t *testing.T, cfg sound.APIConfig) *testEnv {
	t.Helper()
	logger := testutil.DiscardLogger()
	api := testutil.NewSoundsAPI(t)
	if cfg.URL == "" && cfg.Key != "" {
		cfg.URL = api.URL()
	}

	client := sound.NewClient(cfg, sound.WithHTTPClient(api.Client()), sound.WithLogger(logger))
	factory := sound.NewFactory(cache.NewMemoryStore(), client, logger)
	console := admin.NewHandler(func() admin.Service { return factory.New() }, admin.Options{Logger: logger})
	renderer := block.NewRenderer(block.WithLogger(logger), block.WithIDGenerator(func() string { return "x" }))

	handler := NewHandler(func() SoundService { return factory.New() }, renderer, console, logger)
	return &testEnv{api: api, handler: handler}
}

func (e *testEnv) get(target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func validConfig() sound.APIConfig {
	return sound.APIConfig{Key: testutil.SoundsAPIKey, ClientName: "bitesize-test"}
}

func TestHandler_Sound_CachesAcrossRequests(t *testing.T) {
	env := newTestEnv(t, validConfig())
	env.api.AddSound(1, map[string]any{"text": "Dia duit", "translation": "Hello", "recorded": nil})

	rec := env.get("/api/sounds/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "MISS", rec.Header().Get(HeaderCache))
	assert.Equal(t, "200", rec.Header().Get(HeaderUpstreamStatus))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, map[string]any{"text": "Dia duit", "translation": "Hello", "recorded": nil}, got)

	rec = env.get("/api/sounds/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get(HeaderCache))
	assert.Empty(t, rec.Header().Get(HeaderUpstreamStatus))
	assert.Equal(t, 1, env.api.Requests(1))
}

func TestHandler_Sound_Failures(t *testing.T) {
	tests := []struct {
		name           string
		cfg            sound.APIConfig
		target         string
		setup          func(api *testutil.SoundsAPI)
		wantStatus     int
		wantCode       string
		wantUpstream   string
		wantAPIHits    int
		wantAPIHitsFor int64
	}{
		{
			name:       "zero ID",
			cfg:        validConfig(),
			target:     "/api/sounds/0",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_id",
		},
		{
			name:       "non-numeric ID",
			cfg:        validConfig(),
			target:     "/api/sounds/abc",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_id",
		},
		{
			name:   "upstream server error is not cached",
			cfg:    validConfig(),
			target: "/api/sounds/2",
			setup: func(api *testutil.SoundsAPI) {
				api.FailSound(2, http.StatusServiceUnavailable)
			},
			wantStatus:     http.StatusBadGateway,
			wantCode:       "upstream_error",
			wantUpstream:   "503",
			wantAPIHits:    2,
			wantAPIHitsFor: 2,
		},
		{
			name:           "wrong API key",
			cfg:            sound.APIConfig{Key: "wrong", ClientName: "bitesize-test"},
			target:         "/api/sounds/3",
			wantStatus:     http.StatusBadGateway,
			wantCode:       "unauthorized",
			wantUpstream:   "401",
			wantAPIHits:    2,
			wantAPIHitsFor: 3,
		},
		{
			name:       "missing configuration",
			cfg:        sound.APIConfig{ClientName: "bitesize-test"},
			target:     "/api/sounds/4",
			wantStatus: http.StatusInternalServerError,
			wantCode:   "config_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.cfg)
			if tt.setup != nil {
				tt.setup(env.api)
			}

			for range 2 {
				rec := env.get(tt.target)
				assert.Equal(t, tt.wantStatus, rec.Code)
				assert.Equal(t, "MISS", rec.Header().Get(HeaderCache))
				assert.Equal(t, tt.wantUpstream, rec.Header().Get(HeaderUpstreamStatus))

				var body ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantCode, body.Code)
				assert.NotEmpty(t, body.Message)
			}
			if tt.wantAPIHitsFor != 0 {
				assert.Equal(t, tt.wantAPIHits, env.api.Requests(tt.wantAPIHitsFor))
			}
		})
	}
}

func TestHandler_Block(t *testing.T) {
	env := newTestEnv(t, validConfig())
	env.api.AddSound(7, map[string]any{"text": "Slán", "recorded": "2024-01-01"})

	rec := env.get("/blocks/sounds/7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "MISS", rec.Header().Get(HeaderCache))
	assert.Contains(t, rec.Body.String(), `<script type="application/json" id="bitesize-audio--x-data">`)

	rec = env.get("/blocks/sounds/7?editor=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get(HeaderCache))
	assert.Contains(t, rec.Body.String(), "display: none;")

	rec = env.get("/blocks/sounds/8")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "prehydrate failed: upstream_error for sound 8")
}

func TestHandler_RoutesConsoleAndHealth(t *testing.T) {
	env := newTestEnv(t, validConfig())

	rec := env.get(admin.ConsolePath)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Audio Cache Management"))

	rec = env.get("/healthz")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.get("/api/sounds")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewHTTPServer(t *testing.T) {
	srv := NewHTTPServer(8080, http.NotFoundHandler())
	assert.Equal(t, ":8080", srv.Addr)
	assert.NotNil(t, srv.Handler)
}
