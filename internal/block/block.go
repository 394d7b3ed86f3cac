// Package block renders the audio button widget. The sound record is
// resolved on the server and embedded next to the widget as JSON, so the
// browser never calls the Sounds API itself.
package block

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bitesizeirish/bitesize-cursai/internal/sound"
)

// ElementPrefix starts the DOM id of every rendered widget.
const ElementPrefix = "bitesize-audio--"

// SoundGetter resolves a sound record.
type SoundGetter interface {
	GetSound(ctx context.Context, id int64) (sound.Record, error)
}

// Block is one placement of the widget.
type Block struct {
	// SoundID is the raw value entered by the editor.
	SoundID string
	// Editor renders the editing preview instead of the visible widget.
	Editor bool
}

type Renderer struct {
	newID  func() string
	logger *slog.Logger
}

type Option func(*Renderer)

// WithIDGenerator replaces the unique part of element IDs.
func WithIDGenerator(fn func() string) Option {
	return func(r *Renderer) {
		r.newID = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

//go:embed templates/block.html.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").ParseFS(templateFS, "templates/block.html.tmpl"))

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		newID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type emptyView struct {
	Editor  bool
	Comment template.HTML
}

type blockView struct {
	Editor    bool
	SoundID   int64
	ElementID string
	Selector  string
	Data      template.JS
	Comment   template.HTML
}

// Render writes the widget for b. Lookup failures never fail the render:
// the widget is still written and the failure is left as an HTML comment.
func (r *Renderer) Render(ctx context.Context, w io.Writer, sounds SoundGetter, b Block) error {
	raw := strings.TrimSpace(b.SoundID)
	if raw == "" {
		return r.execute(w, "empty", emptyView{
			Editor:  b.Editor,
			Comment: "<!-- Audio block: No sound ID -->",
		})
	}

	id := sound.ParseID(raw)
	elementID := ElementPrefix + r.newID()
	view := blockView{
		Editor:    b.Editor,
		SoundID:   id,
		ElementID: elementID,
		Selector:  "#" + elementID,
	}

	record, err := sounds.GetSound(ctx, id)
	if err == nil {
		data, encodeErr := json.Marshal(record)
		if encodeErr != nil {
			err = encodeErr
		} else {
			view.Data = template.JS(data)
		}
	}
	if err != nil {
		kind := string(sound.KindOf(err))
		if kind == "" {
			kind = "unknown_error"
		}
		r.logger.DebugContext(ctx, "Prehydration failed", "sound_id", id, "kind", kind, "error", err)
		view.Comment = template.HTML(fmt.Sprintf("<!-- Bitesize Audio: prehydrate failed: %s for sound %d -->",
			html.EscapeString(kind), id))
	}

	return r.execute(w, "block", view)
}

func (r *Renderer) execute(w io.Writer, name string, data any) error {
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("templates.ExecuteTemplate(%s) > %w", name, err)
	}
	return nil
}
