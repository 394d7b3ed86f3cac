package sound

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Record is the metadata of one audio phrase as returned by the Sounds API.
// The payload is passed through as-is; the accessors only read the
// well-known keys.
type Record map[string]any

// RecordingState describes the "recorded" field of a record.
type RecordingState int

const (
	// RecordingUnknown means the record has no "recorded" key.
	RecordingUnknown RecordingState = iota
	// RecordingPending means "recorded" is present and null.
	RecordingPending
	// RecordingDone means "recorded" carries a value.
	RecordingDone
)

func (s RecordingState) String() string {
	switch s {
	case RecordingPending:
		return "pending"
	case RecordingDone:
		return "recorded"
	default:
		return "unknown"
	}
}

// Text returns the Irish phrase.
func (r Record) Text() string {
	return r.stringField("text")
}

// Label returns the rich variant of the phrase, which may contain HTML.
func (r Record) Label() string {
	return r.stringField("label")
}

func (r Record) Translation() string {
	return r.stringField("translation")
}

func (r Record) Pronunciation() string {
	return r.stringField("pronunciation")
}

// RecordingState reports whether the phrase has been recorded yet.
func (r Record) RecordingState() RecordingState {
	value, ok := r["recorded"]
	if !ok {
		return RecordingUnknown
	}
	if value == nil {
		return RecordingPending
	}
	return RecordingDone
}

func (r Record) stringField(key string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return ""
}

var errTrailingData = errors.New("unexpected data after top-level value")

// decodeRecord parses an upstream or cached payload. Objects are used
// directly and arrays become records keyed by their decimal index; any
// other JSON value is rejected.
func decodeRecord(data []byte) (Record, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("decoder.Decode > %w", err)
	}
	if decoder.More() {
		return nil, errTrailingData
	}

	switch v := value.(type) {
	case map[string]any:
		return Record(v), nil
	case []any:
		record := make(Record, len(v))
		for i, item := range v {
			record[strconv.Itoa(i)] = item
		}
		return record, nil
	default:
		return nil, fmt.Errorf("payload is %T, not an object or array", value)
	}
}

func encodeRecord(record Record) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal > %w", err)
	}
	return data, nil
}
