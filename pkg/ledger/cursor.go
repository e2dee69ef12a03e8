package ledger

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EncodeCursor renders a ListTransactions pagination cursor as the
// opaque base64 encoding of (created_at_unix, entry_id). entryID is
// carried for uniqueness but the query itself only needs the timestamp,
// since journal entries are immutable and creation order is total
// within an account's line set.
func EncodeCursor(createdAt time.Time, entryID EntryID) string {
	raw := fmt.Sprintf("%d:%s", createdAt.Unix(), entryID.String())
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor produced by EncodeCursor. An empty
// string decodes to the zero time, requesting the first page.
func DecodeCursor(cursor string) (time.Time, error) {
	if cursor == "" {
		return time.Time{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed cursor", ErrValidation)
	}
	unixPart, _, found := strings.Cut(string(raw), ":")
	if !found {
		return time.Time{}, fmt.Errorf("%w: malformed cursor", ErrValidation)
	}
	unixSeconds, err := strconv.ParseInt(unixPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed cursor", ErrValidation)
	}
	return time.Unix(unixSeconds, 0).UTC(), nil
}
