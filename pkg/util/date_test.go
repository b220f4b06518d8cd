package util

import (
	"testing"
	"time"
)

func TestAlignFromTo(t *testing.T) {
	from := time.Date(2024, 10, 10, 10, 17, 42, 0, time.UTC)
	to := time.Date(2024, 10, 10, 19, 3, 5, 0, time.UTC)

	gotFrom, gotTo := AlignFromTo(from, to, "1h")
	if gotFrom != time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected from %v", gotFrom)
	}
	if gotTo != time.Date(2024, 10, 10, 19, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected to %v", gotTo)
	}

	gotFrom, _ = AlignFromTo(from, to, "15m")
	if gotFrom != time.Date(2024, 10, 10, 10, 15, 0, 0, time.UTC) {
		t.Fatalf("unexpected 15m from %v", gotFrom)
	}

	gotFrom, _ = AlignFromTo(from, to, "1d")
	if gotFrom != time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected 1d from %v", gotFrom)
	}
}

func TestParseIntDefault(t *testing.T) {
	if got := ParseIntDefault("", 7); got != 7 {
		t.Fatalf("empty string should fall back, got %d", got)
	}
	if got := ParseIntDefault("abc", 7); got != 7 {
		t.Fatalf("invalid string should fall back, got %d", got)
	}
	if got := ParseIntDefault("42", 7); got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}
