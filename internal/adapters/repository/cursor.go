package repository

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cursor is an opaque pagination token encoding a (timestamp, id)
// tie-break. Keyset paging on that pair keeps page boundaries stable while
// new solves are inserted: a row that existed at the start of pagination is
// returned exactly once.
type Cursor string

// cursorSep separates the timestamp from the id inside the token.
const cursorSep = "|"

// EncodeCursor builds the token pointing past the given row.
func EncodeCursor(createdAt time.Time, id uuid.UUID) Cursor {
	raw := createdAt.UTC().Format(time.RFC3339Nano) + cursorSep + id.String()
	return Cursor(base64.URLEncoding.EncodeToString([]byte(raw)))
}

// Decode splits the token back into its (timestamp, id) pair.
func (c Cursor) Decode() (time.Time, uuid.UUID, error) {
	raw, err := base64.URLEncoding.DecodeString(string(c))
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	parts := strings.SplitN(string(raw), cursorSep, 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: missing separator", ErrInvalidCursor)
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: bad timestamp: %w", ErrInvalidCursor, err)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: bad id: %w", ErrInvalidCursor, err)
	}
	return ts, id, nil
}

// IsZero reports whether the cursor is the start-of-listing token.
func (c Cursor) IsZero() bool { return c == "" }
