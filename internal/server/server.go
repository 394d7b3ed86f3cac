// Package server exposes sounds over HTTP: the JSON lookup endpoint, the
// rendered audio block and the cache console.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/bitesizeirish/bitesize-cursai/internal/admin"
	"github.com/bitesizeirish/bitesize-cursai/internal/block"
	"github.com/bitesizeirish/bitesize-cursai/internal/sound"
)

const (
	HeaderCache          = "X-Bitesize-Cache"
	HeaderUpstreamStatus = "X-Bitesize-Upstream-Status"
)

// SoundService is the part of sound.Service the public endpoints use.
type SoundService interface {
	GetSound(ctx context.Context, id int64) (sound.Record, error)
	LastMeta() sound.Meta
}

// ErrorResponse is the body of a failed lookup.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Handler struct {
	services func() SoundService
	renderer *block.Renderer
	logger   *slog.Logger
}

// NewHandler routes the public endpoints and, when console is not nil, the
// cache console. services must return a new SoundService per call so the
// lookup memo lives for one request.
func NewHandler(services func() SoundService, renderer *block.Renderer, console *admin.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		services: services,
		renderer: renderer,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sounds/{id}", h.handleSound)
	mux.HandleFunc("GET /blocks/sounds/{id}", h.handleBlock)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if console != nil {
		console.Register(mux)
	}
	return mux
}

// NewHTTPServer serves handler on the given port, accepting HTTP/2 without
// TLS.
func NewHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (h *Handler) handleSound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := sound.ParseID(r.PathValue("id"))
	service := h.services()

	record, err := service.GetSound(ctx, id)
	writeMeta(w, service.LastMeta())
	if err != nil {
		status := statusFor(sound.KindOf(err))
		if status >= http.StatusInternalServerError {
			h.logger.WarnContext(ctx, "Sound lookup failed", "sound_id", id, "error", err)
		}
		writeJSON(w, status, ErrorResponse{Code: string(sound.KindOf(err)), Message: errorMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	service := h.services()

	var buf bytes.Buffer
	err := h.renderer.Render(ctx, &buf, service, block.Block{
		SoundID: r.PathValue("id"),
		Editor:  r.URL.Query().Get("editor") == "1",
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to render audio block", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeMeta(w, service.LastMeta())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func statusFor(kind sound.Kind) int {
	switch kind {
	case sound.KindInvalidID:
		return http.StatusBadRequest
	case sound.KindConfig:
		return http.StatusInternalServerError
	case sound.KindUnauthorized, sound.KindUpstream, sound.KindAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	var soundErr *sound.Error
	if errors.As(err, &soundErr) && soundErr.Message != "" {
		return soundErr.Message
	}
	return "sound lookup failed"
}

func writeMeta(w http.ResponseWriter, meta sound.Meta) {
	w.Header().Set(HeaderCache, string(meta.Cache))
	if meta.UpstreamStatus != 0 {
		w.Header().Set(HeaderUpstreamStatus, strconv.Itoa(meta.UpstreamStatus))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
