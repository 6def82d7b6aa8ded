// cursor.go — keyset-pagination cursor for the upstream liquidations API.
// The wire form is the composite string "<time_ms>:<tid>"; callers outside
// this package treat it as opaque and pass it through untouched, using
// this package only to inspect the time_ms/tid it carries.
package cursor

import (
	"fmt"
	"strconv"
	"strings"
)

// Cursor is the parsed form of the opaque upstream pagination cursor.
type Cursor struct {
	TimeMs int64
	TID    int64
}

// Parse parses a composite cursor string "time_ms:tid". An empty string
// parses to the zero Cursor (meaning "start from the beginning").
func Parse(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}
	idx := strings.LastIndex(s, ":")
	if idx == -1 {
		return Cursor{}, fmt.Errorf("invalid cursor format: expected \"time_ms:tid\", got %q", s)
	}
	timeMsStr, tidStr := s[:idx], s[idx+1:]

	timeMs, err := strconv.ParseInt(timeMsStr, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid time_ms in cursor: %w", err)
	}
	tid, err := strconv.ParseInt(tidStr, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid tid in cursor: %w", err)
	}
	return Cursor{TimeMs: timeMs, TID: tid}, nil
}

// Build composes a cursor string from a time_ms/tid pair.
func Build(timeMs, tid int64) string {
	return fmt.Sprintf("%d:%d", timeMs, tid)
}

// String renders the cursor back to its opaque wire form.
func (c Cursor) String() string {
	return Build(c.TimeMs, c.TID)
}

// IsZero reports whether c is the "start from the beginning" cursor.
func (c Cursor) IsZero() bool {
	return c.TimeMs == 0 && c.TID == 0
}
