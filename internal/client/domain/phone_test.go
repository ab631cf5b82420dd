package domain

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"5551234567", "+15551234567"},
		{"(555) 123-4567", "+15551234567"},
		{"1-555-123-4567", "+15551234567"},
		{"+1 555 123 4567", "+15551234567"},
		{"+44 20 7946 0958", "+442079460958"},
	}

	for _, tc := range cases {
		got, err := NormalizePhone(tc.raw)
		if err != nil {
			t.Errorf("NormalizePhone(%q) error: %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizePhoneRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "123", "555-1234", "12345678901234567890"} {
		if _, err := NormalizePhone(raw); !errors.Is(err, ErrInvalidPhone) {
			t.Errorf("NormalizePhone(%q) = %v, want ErrInvalidPhone", raw, err)
		}
	}
}
