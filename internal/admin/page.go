package admin

import "github.com/bitesizeirish/bitesize-cursai/internal/sound"

type consolePage struct {
	ConsolePath      string
	Invalidated      *int64
	ClearedAll       *int64
	TotalCached      int
	APIConfigured    bool
	RequiredSettings []string
	CacheDriver      string
	CheckSoundID     int64
	Check            *soundCheck
	Recent           []recentRow
	InvalidateNonce  string
	ClearAllNonce    string
}

type soundCheck struct {
	Cached        bool
	CacheKey      string
	Text          string
	Translation   string
	Pronunciation string
	// Recording is empty when the record has no "recorded" key.
	Recording  string
	HasExpiry  bool
	ExpiresAt  string
	ExpiresIn  string
	Expired    bool
	ServerTime string
}

func (c *soundCheck) fill(record sound.Record) {
	c.Text = record.Text()
	c.Translation = record.Translation()
	c.Pronunciation = record.Pronunciation()
	switch record.RecordingState() {
	case sound.RecordingPending:
		c.Recording = "pending"
	case sound.RecordingDone:
		c.Recording = "done"
	}
}

type recentRow struct {
	ID          int64
	Text        string
	Translation string
	Pending     bool
}

const emptyCell = "—"

func newRecentRows(sounds []sound.CachedSound) []recentRow {
	rows := make([]recentRow, 0, len(sounds))
	for _, s := range sounds {
		text := s.Record.Text()
		if text == "" {
			text = s.Record.Label()
		}
		if text == "" {
			text = emptyCell
		}
		translation := s.Record.Translation()
		if translation == "" {
			translation = emptyCell
		}
		rows = append(rows, recentRow{
			ID:          s.ID,
			Text:        text,
			Translation: translation,
			Pending:     s.Record.RecordingState() == sound.RecordingPending,
		})
	}
	return rows
}
