package parse

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimecode(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"00:01:02.50", 62500 * time.Millisecond},
		{"00:00:00.00", 0},
		{"01:00:00", time.Hour},
		{"25:10:05.1", 25*time.Hour + 10*time.Minute + 5*time.Second + 100*time.Millisecond},
		{"00:00:01.123456789123", time.Second + 123456789*time.Nanosecond},
		{"-00:00:00.02", -20 * time.Millisecond},
		{" 00:00:03.00 ", 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimecode(tt.input)
			if err != nil {
				t.Fatalf("ParseTimecode(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseTimecode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseTimecode_Invalid(t *testing.T) {
	for _, input := range []string{"", "N/A", "1:2", "00:60:00", "00:00:60", "aa:00:00", "00:00:01.", "00:+1:00", "00:00:01.5x"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseTimecode(input)
			if !errors.Is(err, ErrInvalidTimecode) {
				t.Errorf("ParseTimecode(%q) error = %v, want ErrInvalidTimecode", input, err)
			}
		})
	}
}

func TestFormatTimecode(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  string
	}{
		{0, "00:00:00.000"},
		{62500 * time.Millisecond, "00:01:02.500"},
		{26*time.Hour + 3*time.Second, "26:00:03.000"},
		{-1500 * time.Millisecond, "-00:00:01.500"},
	}

	for _, tt := range tests {
		if got := FormatTimecode(tt.input); got != tt.want {
			t.Errorf("FormatTimecode(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
