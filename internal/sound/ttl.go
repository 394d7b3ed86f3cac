package sound

import (
	"net/http"
	"time"
)

const (
	// ServerErrorTTL applies when upstream answered with a 5xx status.
	ServerErrorTTL = time.Minute
	// PendingRecordingTTL applies to phrases that have not been recorded yet,
	// since a recording may appear at any moment.
	PendingRecordingTTL = 15 * time.Minute
	// DefaultTTL applies to recorded phrases, which do not change.
	DefaultTTL = 24 * time.Hour
)

// ResolveTTL returns how long a fetched record stays in the persistent
// cache. A status of 0 means no status was observed.
func ResolveTTL(record Record, status int) time.Duration {
	if status >= http.StatusInternalServerError {
		return ServerErrorTTL
	}
	if record.RecordingState() == RecordingPending {
		return PendingRecordingTTL
	}
	return DefaultTTL
}
