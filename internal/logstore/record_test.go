package logstore

import (
	"strings"
	"testing"
	"time"
)

func TestRecordRoundTrip(t *testing.T) {
	r := NewRecord("2024-01-01T00:00:00", "boot")
	b, err := r.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(b) != RecordSize {
		t.Fatalf("encoded size %d want %d", len(b), RecordSize)
	}
	got, ok := DecodeRecord(b)
	if !ok || got != r {
		t.Fatalf("decode mismatch: %q/%q", got.Timestamp(), got.Text())
	}
	if got.Timestamp() != "2024-01-01T00:00:00" || got.Text() != "boot" {
		t.Fatalf("fields: %q %q", got.Timestamp(), got.Text())
	}
}

func TestRecordTruncatesAndTerminates(t *testing.T) {
	long := strings.Repeat("x", TextSize*2)
	r := NewRecord(strings.Repeat("9", 40), long)
	if n := len(r.Text()); n != TextSize-1 {
		t.Fatalf("text len %d want %d", n, TextSize-1)
	}
	if n := len(r.Timestamp()); n != TimestampWidth {
		t.Fatalf("timestamp len %d want %d", n, TimestampWidth)
	}
	b, _ := r.MarshalBinary()
	if b[TimestampSize-1] != 0 || b[RecordSize-1] != 0 {
		t.Fatalf("fields not NUL terminated")
	}
}

func TestDecodeRecordRejectsWrongSize(t *testing.T) {
	if _, ok := DecodeRecord(make([]byte, RecordSize-1)); ok {
		t.Fatalf("expected failure")
	}
}

func TestFormatTimeSortsChronologically(t *testing.T) {
	a := FormatTime(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	b := FormatTime(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	if !(a < b) || len(a) != len(TimeLayout) {
		t.Fatalf("unexpected ordering %q %q", a, b)
	}
}
