package logstore

import (
	"bytes"
	"strings"
	"time"
)

// Record layout: timestamp[TimestampSize] | text[TextSize], each field
// NUL-padded with at least one terminating NUL.
const (
	TimestampSize = 21
	// TimestampWidth is the usable width of a timestamp, and the width of
	// timestamp slices on the wire.
	TimestampWidth = TimestampSize - 1
	TextSize       = 235
	RecordSize     = TimestampSize + TextSize
)

// TimeLayout is the canonical, lexicographically sortable timestamp format.
const TimeLayout = "2006-01-02T15:04:05"

// FormatTime renders t in TimeLayout (UTC).
func FormatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

// Record is one immutable log line.
type Record struct {
	ts   [TimestampSize]byte
	text [TextSize]byte
}

// NewRecord builds a Record, truncating both fields to their capacity.
// Trailing spaces and NULs of the timestamp are dropped.
func NewRecord(timestamp, text string) Record {
	var r Record
	copy(r.ts[:TimestampWidth], strings.TrimRight(timestamp, " \x00"))
	copy(r.text[:TextSize-1], text)
	return r
}

// Timestamp returns the timestamp up to its first NUL.
func (r Record) Timestamp() string { return cstring(r.ts[:]) }

// Text returns the text up to its first NUL.
func (r Record) Text() string { return cstring(r.text[:]) }

// AppendBinary appends the RecordSize-byte encoding of r to dst.
func (r Record) AppendBinary(dst []byte) []byte {
	dst = append(dst, r.ts[:]...)
	return append(dst, r.text[:]...)
}

// MarshalBinary returns the RecordSize-byte encoding of r.
func (r Record) MarshalBinary() ([]byte, error) {
	return r.AppendBinary(make([]byte, 0, RecordSize)), nil
}

// DecodeRecord decodes exactly RecordSize bytes. The terminating NULs are
// enforced so a decoded record always round-trips.
func DecodeRecord(b []byte) (Record, bool) {
	var r Record
	if len(b) != RecordSize {
		return r, false
	}
	copy(r.ts[:], b[:TimestampSize])
	copy(r.text[:], b[TimestampSize:])
	r.ts[TimestampSize-1] = 0
	r.text[TextSize-1] = 0
	return r, true
}

func (r *Record) encodeInto(dst []byte) {
	copy(dst[:TimestampSize], r.ts[:])
	copy(dst[TimestampSize:RecordSize], r.text[:])
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// InInterval returns a predicate matching records whose timestamp lies in
// [start, end]. An empty end leaves the interval unbounded above. Comparison is
// lexicographic, which is chronological for TimeLayout timestamps.
func InInterval(start, end string) func(Record) bool {
	start = strings.TrimRight(start, " \x00")
	end = strings.TrimRight(end, " \x00")
	return func(r Record) bool {
		ts := r.Timestamp()
		if ts < start {
			return false
		}
		return end == "" || ts <= end
	}
}

// All matches every record.
func All(Record) bool { return true }
