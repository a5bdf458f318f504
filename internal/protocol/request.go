package protocol

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/rzbill/logcache/internal/logstore"
)

const (
	// LineSize is the size of every reply and the longest accepted request line.
	LineSize = 512
	// CommandSize is the receive buffer. A line that does not end within it
	// cannot be resynchronised and ends the session.
	CommandSize = 1024
)

// Request is one parsed command line.
type Request struct {
	Op   Op
	Data string
	// HasData distinguishes "STAT" from "STAT ".
	HasData bool
}

// Parse splits line on its first space into opcode and data. The line
// terminator, if any, must already be stripped. An unknown opcode yields
// ErrUnknownOp and a line longer than LineSize yields ErrMessageTooLong; the
// returned request still carries the resolved op in the latter case.
func Parse(line []byte) (Request, error) {
	token, data, hasData := bytes.Cut(line, []byte{' '})
	op, ok := Lookup(string(token))
	if !ok {
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownOp, truncate(token, 32))
	}
	req := Request{Op: op, Data: string(data), HasData: hasData}
	if len(line) > LineSize {
		return req, fmt.Errorf("%w: %d bytes", ErrMessageTooLong, len(line))
	}
	return req, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// ValidateData rejects data containing bytes outside printable ASCII.
func ValidateData(data string) error {
	for i := 0; i < len(data); i++ {
		if c := data[i]; c < 0x20 || c > 0x7e {
			return fmt.Errorf("%w: byte 0x%02x at offset %d", ErrMalformedArgument, c, i)
		}
	}
	return nil
}

// SplitAdd splits an ADD payload into its fixed-width timestamp and text.
func SplitAdd(data string) (timestamp, text string, err error) {
	if len(data) < logstore.TimestampWidth {
		return "", "", fmt.Errorf("%w: payload shorter than a timestamp", ErrMalformedArgument)
	}
	ts := strings.TrimRight(data[:logstore.TimestampWidth], " ")
	if ts == "" {
		return "", "", fmt.Errorf("%w: empty timestamp", ErrMalformedArgument)
	}
	return ts, data[logstore.TimestampWidth:], nil
}

// ParseInterval decodes GETLOGS data "<start>[<end>]", where each bound
// occupies TimestampWidth bytes. Empty data selects everything; a missing end
// leaves the interval open above.
func ParseInterval(data string) (start, end string, err error) {
	const w = logstore.TimestampWidth
	switch {
	case len(data) <= w:
		start = data
	case len(data) <= 2*w:
		start, end = data[:w], data[w:]
	default:
		return "", "", fmt.Errorf("%w: interval longer than two timestamps", ErrMalformedArgument)
	}
	start = strings.TrimRight(start, " ")
	end = strings.TrimRight(end, " ")
	if start == "" && end != "" {
		return "", "", fmt.Errorf("%w: end without start", ErrMalformedArgument)
	}
	return start, end, nil
}

// PadTimestamp right-pads ts with spaces to TimestampWidth, truncating longer
// input.
func PadTimestamp(ts string) string {
	if len(ts) >= logstore.TimestampWidth {
		return ts[:logstore.TimestampWidth]
	}
	return ts + strings.Repeat(" ", logstore.TimestampWidth-len(ts))
}

// FormatRequest renders a request line without terminator.
func FormatRequest(op Op, data string) string {
	if data == "" {
		return op.String()
	}
	return op.String() + " " + data
}

// AddData builds an ADD payload.
func AddData(timestamp, text string) string { return PadTimestamp(timestamp) + text }

// IntervalData builds a GETLOGS payload. Empty start selects everything.
func IntervalData(start, end string) string {
	if start == "" {
		return ""
	}
	if end == "" {
		return PadTimestamp(start)
	}
	return PadTimestamp(start) + PadTimestamp(end)
}
