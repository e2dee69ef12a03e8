package ledger

import (
	"errors"
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	t.Parallel()
	createdAt := time.Unix(1_700_000_123, 0).UTC()
	entryID := NewGeneratedEntryID()

	cursor := EncodeCursor(createdAt, entryID)
	decoded, err := DecodeCursor(cursor)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(createdAt) {
		t.Fatalf("expected %v, got %v", createdAt, decoded)
	}
}

func TestEmptyCursorIsZeroTime(t *testing.T) {
	t.Parallel()
	decoded, err := DecodeCursor("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decoded.IsZero() {
		t.Fatalf("expected zero time for empty cursor, got %v", decoded)
	}
}

func TestMalformedCursorIsRejected(t *testing.T) {
	t.Parallel()
	cases := []string{"not-base64!!", "aGVsbG8", "YWJj"}
	for _, cursor := range cases {
		cursor := cursor
		t.Run(cursor, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeCursor(cursor)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation for %q, got %v", cursor, err)
			}
		})
	}
}
