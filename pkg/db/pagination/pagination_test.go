package pagination

import (
	"errors"
	"fmt"
	"testing"
)

func TestCursorRoundTrip(t *testing.T) {
	cursor := Cursor{ID: "1234567890", CreatedAt: "2026-08-15T10:00:00Z"}
	token, err := EncodeCursor(cursor)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != cursor {
		t.Fatalf("round trip = %+v, want %+v", decoded, cursor)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "   ", "not-base64!!", "bm90IGpzb24", "e30"} {
		if _, err := DecodeCursor(token); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("DecodeCursor(%q) = %v, want ErrInvalidCursor", token, err)
		}
	}
}

func TestBuildCursorPageInfo(t *testing.T) {
	token := func(v int) string { return fmt.Sprintf("tok-%d", v) }

	info := BuildCursorPageInfo([]int{1, 2, 3}, 3, token)
	if info.HasMore || info.NextPageToken != "" {
		t.Fatalf("exact page: %+v", info)
	}

	info = BuildCursorPageInfo([]int{1, 2, 3, 4}, 3, token)
	if !info.HasMore || info.NextPageToken != "tok-3" {
		t.Fatalf("overfetched page: %+v", info)
	}

	info = BuildCursorPageInfo([]int{}, 3, token)
	if info.HasMore {
		t.Fatalf("empty page: %+v", info)
	}
}
