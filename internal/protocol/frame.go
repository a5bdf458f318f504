package protocol

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rzbill/logcache/internal/logstore"
)

const (
	// CountSize is the GETLOGS count frame.
	CountSize = 128
	// StatusSize is the STAT frame.
	StatusSize = 256

	failedPrefix = "FAILED: "
)

// StatTemplate formats the STAT frame: server time, memory in KB, record count.
const StatTemplate = "time=%s memory=%dKB logs=%d"

// Reply is a decoded reply line.
type Reply struct {
	OK   bool
	Text string
}

// Err returns the failure as an error, or nil.
func (r Reply) Err() error {
	if r.OK {
		return nil
	}
	return &FailedError{Reason: r.Text}
}

// FailedError is a FAILED reply seen by a client.
type FailedError struct{ Reason string }

func (e *FailedError) Error() string { return failedPrefix + e.Reason }

func fixed(s string, size int) []byte {
	b := make([]byte, size)
	copy(b[:size-1], s)
	return b
}

// SuccessReply returns the LineSize reply for op.
func SuccessReply(op Op) []byte { return fixed(op.Descriptor().Success, LineSize) }

// FailureReply returns the LineSize reply for err.
func FailureReply(err error) []byte { return fixed(failedPrefix+ReasonFor(err), LineSize) }

// DecodeReply decodes a reply line.
func DecodeReply(b []byte) Reply {
	s := cstring(b)
	if reason, ok := strings.CutPrefix(s, failedPrefix); ok {
		return Reply{Text: reason}
	}
	return Reply{OK: true, Text: s}
}

// CountFrame returns the GETLOGS count frame for n records.
func CountFrame(n int) []byte { return fixed(strconv.Itoa(n), CountSize) }

// StatusFrame returns the STAT frame.
func StatusFrame(now time.Time, memoryBytes, records int) []byte {
	return fixed(fmt.Sprintf(StatTemplate, logstore.FormatTime(now), memoryBytes/1024, records), StatusSize)
}

// Status is a decoded STAT frame.
type Status struct {
	Time     string
	MemoryKB int
	Records  int
}

// ParseStatus decodes a STAT frame.
func ParseStatus(b []byte) (Status, error) {
	var st Status
	if _, err := fmt.Sscanf(cstring(b), StatTemplate, &st.Time, &st.MemoryKB, &st.Records); err != nil {
		return Status{}, fmt.Errorf("parse status %q: %w", cstring(b), err)
	}
	return st, nil
}

// ReadFrame reads a data frame of size bytes. Data frames are only sent on
// success, so a frame beginning with the failure prefix is the start of a
// FAILED reply; ReadFrame then reads the rest of it and returns its error.
func ReadFrame(r io.Reader, size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(b, []byte(failedPrefix)) {
		return b, nil
	}
	rest := make([]byte, LineSize-size)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	return nil, DecodeReply(append(b, rest...)).Err()
}

// ReadReply reads one reply line.
func ReadReply(r io.Reader) (Reply, error) {
	b := make([]byte, LineSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return Reply{}, err
	}
	return DecodeReply(b), nil
}

// ParseCount decodes a count frame.
func ParseCount(b []byte) (int, error) {
	n, err := strconv.Atoi(cstring(b))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad count frame %q", cstring(b))
	}
	return n, nil
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
