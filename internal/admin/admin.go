// Package admin serves the audio cache console: an overview of the
// persistent cache, a per-sound status check and the invalidate and clear
// actions.
package admin

import (
	"bytes"
	"context"
	"crypto/subtle"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bitesizeirish/bitesize-cursai/internal/sound"
)

const (
	// ConsolePath is where the console page is served.
	ConsolePath = "/admin/audio-cache"

	ActionInvalidate = "bitesize_invalidate_sound"
	ActionClearAll   = "bitesize_clear_all_caches"

	recentLimit = 20
	realm       = "Bitesize Cursai"
)

// Service is the part of sound.Service the console uses.
type Service interface {
	GetCachedSound(ctx context.Context, id int64) (sound.Record, bool, error)
	LastMeta() sound.Meta
	GetCacheExpiry(ctx context.Context, id int64) (time.Time, bool, error)
	Invalidate(ctx context.Context, id int64) error
	GetAllCachedSounds(ctx context.Context, limit int) ([]sound.CachedSound, error)
	GetCachedSoundsCount(ctx context.Context) (int, error)
	ClearAllCaches(ctx context.Context) (int, error)
}

// ServiceFactory returns a fresh Service for each request.
type ServiceFactory func() Service

// Options configures the console.
type Options struct {
	// Username and Password are the administrator's basic credentials. With
	// no password the console is read-only.
	Username string
	Password string
	// APIConfigured reports whether every Sounds API setting is present.
	APIConfigured bool
	// RequiredSettings are listed on the overview.
	RequiredSettings []string
	// CacheDriver names the persistent store backend.
	CacheDriver string
	Nonces      *Nonces
	Logger      *slog.Logger
	Now         func() time.Time
}

type Handler struct {
	services ServiceFactory
	opts     Options
	logger   *slog.Logger
}

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").ParseFS(templateFS, "templates/*.html.tmpl"))

func NewHandler(services ServiceFactory, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Nonces == nil {
		opts.Nonces = NewNonces("", opts.Now)
	}
	return &Handler{
		services: services,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Register mounts the console routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+ConsolePath, h.handleConsole)
	mux.HandleFunc("POST "+ConsolePath+"/invalidate", h.handleInvalidate)
	mux.HandleFunc("POST "+ConsolePath+"/clear", h.handleClearAll)
}

func (h *Handler) handleConsole(w http.ResponseWriter, r *http.Request) {
	// Reading is open while no administrator is configured.
	if h.opts.Password != "" && !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`", charset="UTF-8"`)
		h.fatal(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	ctx := r.Context()
	query := r.URL.Query()
	page := consolePage{
		APIConfigured:    h.opts.APIConfigured,
		RequiredSettings: h.opts.RequiredSettings,
		CacheDriver:      h.opts.CacheDriver,
		InvalidateNonce:  h.opts.Nonces.Create(ActionInvalidate),
		ClearAllNonce:    h.opts.Nonces.Create(ActionClearAll),
		ConsolePath:      ConsolePath,
	}
	if query.Has("invalidated") {
		id := sound.ParseID(query.Get("invalidated"))
		page.Invalidated = &id
	}
	if query.Has("cleared_all") {
		count := sound.ParseID(query.Get("cleared_all"))
		page.ClearedAll = &count
	}

	if id := sound.ParseID(query.Get("check_sound_id")); id > 0 {
		check, err := h.checkSound(ctx, id)
		if err != nil {
			h.logger.ErrorContext(ctx, "Failed to check sound cache", "sound_id", id, "error", err)
			h.fatal(w, http.StatusInternalServerError, "Failed to read the sound cache")
			return
		}
		page.CheckSoundID = id
		page.Check = check
	}

	service := h.services()
	total, err := service.GetCachedSoundsCount(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to count cached sounds", "error", err)
		h.fatal(w, http.StatusInternalServerError, "Failed to read the sound cache")
		return
	}
	recent, err := service.GetAllCachedSounds(ctx, recentLimit)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list cached sounds", "error", err)
		h.fatal(w, http.StatusInternalServerError, "Failed to read the sound cache")
		return
	}
	page.TotalCached = total
	page.Recent = newRecentRows(recent)

	h.render(w, http.StatusOK, "audio_cache.html.tmpl", page)
}

func (h *Handler) checkSound(ctx context.Context, id int64) (*soundCheck, error) {
	service := h.services()
	record, found, err := service.GetCachedSound(ctx, id)
	if err != nil {
		return nil, err
	}
	check := &soundCheck{
		CacheKey: sound.CacheKey(id),
		Cached:   found && service.LastMeta().Cache == sound.DispositionHit,
	}
	if !check.Cached {
		return check, nil
	}
	check.fill(record)

	expiresAt, ok, err := service.GetCacheExpiry(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok {
		now := h.opts.Now()
		check.HasExpiry = true
		check.ExpiresAt = expiresAt.Local().Format(time.DateTime)
		check.Expired = expiresAt.Before(now)
		check.ExpiresIn = strings.TrimSpace(humanize.RelTime(now, expiresAt, "", ""))
		check.ServerTime = now.Local().Format(time.DateTime)
	}
	return check, nil
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r, ActionInvalidate) {
		return
	}

	ctx := r.Context()
	id := sound.ParseID(r.PostFormValue("sound_id"))
	if id <= 0 {
		http.Redirect(w, r, ConsolePath, http.StatusSeeOther)
		return
	}
	if err := h.services().Invalidate(ctx, id); err != nil {
		h.logger.ErrorContext(ctx, "Failed to invalidate sound", "sound_id", id, "error", err)
		h.fatal(w, http.StatusInternalServerError, "Failed to invalidate the sound cache")
		return
	}
	h.logger.InfoContext(ctx, "Invalidated sound cache", "sound_id", id)
	redirect(w, r, url.Values{"invalidated": {strconv.FormatInt(id, 10)}})
}

func (h *Handler) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r, ActionClearAll) {
		return
	}

	ctx := r.Context()
	count, err := h.services().ClearAllCaches(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to clear sound caches", "cleared", count, "error", err)
		h.fatal(w, http.StatusInternalServerError, "Failed to clear the sound cache")
		return
	}
	h.logger.InfoContext(ctx, "Cleared sound caches", "cleared", count)
	redirect(w, r, url.Values{"cleared_all": {strconv.Itoa(count)}})
}

// allowed runs the nonce check and then the authorization check, writing the
// fatal page when either fails.
func (h *Handler) allowed(w http.ResponseWriter, r *http.Request, action string) bool {
	if !h.opts.Nonces.Verify(r.PostFormValue("_wpnonce"), action) {
		h.logger.WarnContext(r.Context(), "Rejected console action", "action", action, "reason", "nonce")
		h.fatal(w, http.StatusForbidden, "Security check failed")
		return false
	}
	if !h.authorized(r) {
		h.logger.WarnContext(r.Context(), "Rejected console action", "action", action, "reason", "permission")
		h.fatal(w, http.StatusForbidden, "You do not have permission to perform this action")
		return false
	}
	return true
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.opts.Password == "" {
		return false
	}
	username, password, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.opts.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(h.opts.Password)) == 1
	return userOK && passOK
}

func (h *Handler) fatal(w http.ResponseWriter, status int, message string) {
	h.render(w, status, "fatal.html.tmpl", struct {
		Message     string
		ConsolePath string
	}{Message: message, ConsolePath: ConsolePath})
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("Failed to render console template", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func redirect(w http.ResponseWriter, r *http.Request, query url.Values) {
	http.Redirect(w, r, ConsolePath+"?"+query.Encode(), http.StatusSeeOther)
}
