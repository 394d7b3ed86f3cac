package block

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bitesizeirish/bitesize-cursai/internal/cache"
	mock_sound "github.com/bitesizeirish/bitesize-cursai/internal/mocks/sound"
	"github.com/bitesizeirish/bitesize-cursai/internal/sound"
)

func newTestRenderer() *Renderer {
	return NewRenderer(
		WithIDGenerator(func() string { return "abc123" }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestRenderer_Render(t *testing.T) {
	tests := []struct {
		name         string
		block        Block
		setupMock    func(m *mock_sound.MockFetcher)
		wantContains []string
		wantMissing  []string
	}{
		{
			name:  "empty sound ID on the frontend",
			block: Block{SoundID: " "},
			wantContains: []string{
				"<p><!-- Audio block: No sound ID --></p>",
			},
			wantMissing: []string{"bitesize-audio-wrapper"},
		},
		{
			name:  "empty sound ID in the editor",
			block: Block{Editor: true},
			wantContains: []string{
				"Please enter a Sound ID in the block settings",
			},
			wantMissing: []string{"bitesize-audio-wrapper", "<!--"},
		},
		{
			name:  "prehydrated",
			block: Block{SoundID: "347"},
			setupMock: func(m *mock_sound.MockFetcher) {
				m.EXPECT().Fetch(gomock.Any(), int64(347)).
					Return(sound.Record{"text": "Dia duit", "label": "<b>Dia</b> duit", "recorded": nil}, nil)
			},
			wantContains: []string{
				`<script type="application/json" id="bitesize-audio--abc123-data">`,
				`"text":"Dia duit"`,
				`"label":"\u003cb\u003eDia\u003c/b\u003e duit"`,
				`<div id="bitesize-audio--abc123" class="bitesize-audio-wrapper" style="">`,
				`<bitesize-audio-button :sound-id="347">`,
				`el: "#bitesize-audio--abc123"`,
			},
			wantMissing: []string{"prehydrate failed", "Audio button will display on the frontend"},
		},
		{
			name:  "editor preview hides the wrapper",
			block: Block{SoundID: "347", Editor: true},
			setupMock: func(m *mock_sound.MockFetcher) {
				m.EXPECT().Fetch(gomock.Any(), int64(347)).Return(sound.Record{"text": "Dia duit"}, nil)
			},
			wantContains: []string{
				"Bitesize Audio</strong> - Sound ID: 347",
				`style="display: none;"`,
				`id="bitesize-audio--abc123-data"`,
			},
		},
		{
			name:  "upstream failure leaves a comment",
			block: Block{SoundID: "12"},
			setupMock: func(m *mock_sound.MockFetcher) {
				m.EXPECT().Fetch(gomock.Any(), int64(12)).
					Return(nil, &sound.Error{Kind: sound.KindUnauthorized, Status: http.StatusUnauthorized})
			},
			wantContains: []string{
				"<!-- Bitesize Audio: prehydrate failed: unauthorized for sound 12 -->",
				`<div id="bitesize-audio--abc123" class="bitesize-audio-wrapper"`,
			},
			wantMissing: []string{"application/json"},
		},
		{
			name:  "leading integer of the sound ID",
			block: Block{SoundID: "12abc"},
			setupMock: func(m *mock_sound.MockFetcher) {
				m.EXPECT().Fetch(gomock.Any(), int64(12)).Return(sound.Record{"text": "Dia duit"}, nil)
			},
			wantContains: []string{
				`<bitesize-audio-button :sound-id="12">`,
				`"text":"Dia duit"`,
			},
			wantMissing: []string{"prehydrate failed"},
		},
		{
			name:  "non-numeric sound ID",
			block: Block{SoundID: "abc"},
			wantContains: []string{
				"<!-- Bitesize Audio: prehydrate failed: invalid_id for sound 0 -->",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			fetcher := mock_sound.NewMockFetcher(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(fetcher)
			}
			service := sound.NewService(cache.NewMemoryStore(), fetcher, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

			var buf bytes.Buffer
			err := newTestRenderer().Render(context.Background(), &buf, service, tt.block)
			require.NoError(t, err)

			got := buf.String()
			for _, want := range tt.wantContains {
				assert.Contains(t, got, want)
			}
			for _, missing := range tt.wantMissing {
				assert.NotContains(t, got, missing)
			}
		})
	}
}

func TestRenderer_Render_SharesLookupsWithinRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock_sound.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), int64(5)).Return(sound.Record{"text": "Slán"}, nil).Times(1)
	service := sound.NewService(cache.NewMemoryStore(), fetcher, nil, nil)

	ids := []string{"one", "two"}
	renderer := NewRenderer(WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))

	var buf bytes.Buffer
	require.NoError(t, renderer.Render(context.Background(), &buf, service, Block{SoundID: "5"}))
	require.NoError(t, renderer.Render(context.Background(), &buf, service, Block{SoundID: "5"}))

	got := buf.String()
	assert.Contains(t, got, `id="bitesize-audio--one-data"`)
	assert.Contains(t, got, `id="bitesize-audio--two-data"`)
	assert.Equal(t, sound.DispositionHit, service.LastMeta().Cache)
}

func TestNewRenderer_UniqueIDs(t *testing.T) {
	renderer := NewRenderer()
	assert.NotEqual(t, renderer.newID(), renderer.newID())
	assert.Len(t, renderer.newID(), 32)
}
