package sound

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveTTL(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		status int
		want   time.Duration
	}{
		{
			name:   "not yet recorded",
			record: Record{"text": "Slán", "recorded": nil},
			status: 200,
			want:   15 * time.Minute,
		},
		{
			name:   "recorded",
			record: Record{"text": "Slán", "recorded": "2024-02-03T10:00:00Z"},
			status: 200,
			want:   24 * time.Hour,
		},
		{
			name:   "recorded field absent",
			record: Record{"text": "Slán"},
			status: 200,
			want:   24 * time.Hour,
		},
		{
			name:   "server error wins over content",
			record: Record{"recorded": nil},
			status: 503,
			want:   time.Minute,
		},
		{
			name:   "boundary 500",
			record: Record{},
			status: 500,
			want:   60 * time.Second,
		},
		{
			name:   "no status observed",
			record: Record{"recorded": nil},
			status: 0,
			want:   900 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveTTL(tt.record, tt.status))
		})
	}
}
