package sound

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Record
		wantErr bool
	}{
		{
			name: "object",
			data: `{"text":"Dia duit","translation":"Hello","pronunciation":"dee-ah gwit","recorded":null}`,
			want: Record{
				"text":          "Dia duit",
				"translation":   "Hello",
				"pronunciation": "dee-ah gwit",
				"recorded":      nil,
			},
		},
		{
			name: "numbers keep their literal form",
			data: `{"id":347,"recorded":"2024-05-01"}`,
			want: Record{"id": json.Number("347"), "recorded": "2024-05-01"},
		},
		{
			name: "array is keyed by index",
			data: `["a","b"]`,
			want: Record{"0": "a", "1": "b"},
		},
		{
			name:    "string payload",
			data:    `"hello"`,
			wantErr: true,
		},
		{
			name:    "null payload",
			data:    `null`,
			wantErr: true,
		},
		{
			name:    "truncated",
			data:    `{"text":`,
			wantErr: true,
		},
		{
			name:    "trailing data",
			data:    `{"text":"a"} garbage`,
			wantErr: true,
		},
		{
			name:    "empty body",
			data:    ``,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeRecord([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecord_Accessors(t *testing.T) {
	record := Record{
		"text":          "Go raibh maith agat",
		"label":         "<strong>Go raibh maith agat</strong>",
		"translation":   "Thank you",
		"pronunciation": "guh rev mah a-gut",
		"recorded":      "2024-01-01",
	}

	assert.Equal(t, "Go raibh maith agat", record.Text())
	assert.Equal(t, "<strong>Go raibh maith agat</strong>", record.Label())
	assert.Equal(t, "Thank you", record.Translation())
	assert.Equal(t, "guh rev mah a-gut", record.Pronunciation())
	assert.Equal(t, RecordingDone, record.RecordingState())
	assert.Equal(t, "", Record{"text": 12}.Text())
}

func TestRecord_RecordingState(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   RecordingState
	}{
		{name: "absent", record: Record{"text": "a"}, want: RecordingUnknown},
		{name: "null", record: Record{"recorded": nil}, want: RecordingPending},
		{name: "false still counts as a value", record: Record{"recorded": false}, want: RecordingDone},
		{name: "timestamp", record: Record{"recorded": "2024-01-01"}, want: RecordingDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.RecordingState())
		})
	}
}
