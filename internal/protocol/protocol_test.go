package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rzbill/logcache/internal/logstore"
	"github.com/rzbill/logcache/internal/persist"
	"github.com/rzbill/logcache/internal/registry"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line    string
		op      Op
		data    string
		hasData bool
		err     error
	}{
		{"CONNECT svc1", OpConnect, "svc1", true, nil},
		{"STAT", OpStat, "", false, nil},
		{"STAT ", OpStat, "", true, nil},
		{"ADD 2024-01-01T00:00:00 boot up", OpAdd, "2024-01-01T00:00:00 boot up", true, nil},
		{"GETLOGS", OpGetLogs, "", false, nil},
		{"connect svc1", OpInvalid, "", false, ErrUnknownOp},
		{"", OpInvalid, "", false, ErrUnknownOp},
		{"ADD " + string(bytes.Repeat([]byte("x"), LineSize)), OpAdd, string(bytes.Repeat([]byte("x"), LineSize)), true, ErrMessageTooLong},
	}
	for _, tt := range tests {
		req, err := Parse([]byte(tt.line))
		if !errors.Is(err, tt.err) {
			t.Fatalf("Parse(%.20q) err=%v want %v", tt.line, err, tt.err)
		}
		if req.Op != tt.op || req.Data != tt.data || req.HasData != tt.hasData {
			t.Fatalf("Parse(%.20q)=%+v", tt.line, req)
		}
	}
}

func TestDescriptorTable(t *testing.T) {
	for _, op := range Ops() {
		got, ok := Lookup(op.String())
		if !ok || got != op {
			t.Fatalf("lookup %s", op)
		}
		if op.Descriptor().Success == "" {
			t.Fatalf("%s has no success text", op)
		}
	}
	for _, op := range []Op{OpConnect, OpSubscribe, OpDisconnect} {
		if op.Descriptor().RequiresAttach {
			t.Fatalf("%s must not require attach", op)
		}
	}
	if !OpUnsubscribe.Descriptor().Terminal || !OpDisconnect.Descriptor().Terminal || OpFlush.Descriptor().Terminal {
		t.Fatalf("terminal flags wrong")
	}
	if Op(200).String() != "INVALID" {
		t.Fatalf("out of range op")
	}
}

func TestValidateData(t *testing.T) {
	if err := ValidateData("2024-01-01T00:00:00 hello ~!"); err != nil {
		t.Fatalf("printable rejected: %v", err)
	}
	for _, bad := range []string{"a\tb", "x\x00", "\x7f", "caf\xc3\xa9"} {
		if err := ValidateData(bad); !errors.Is(err, ErrMalformedArgument) {
			t.Fatalf("ValidateData(%q)=%v", bad, err)
		}
	}
}

func TestSplitAdd(t *testing.T) {
	ts, text, err := SplitAdd(AddData("2024-01-01T00:00:00", "boot"))
	if err != nil || ts != "2024-01-01T00:00:00" || text != "boot" {
		t.Fatalf("got %q %q %v", ts, text, err)
	}
	if _, _, err := SplitAdd("short"); !errors.Is(err, ErrMalformedArgument) {
		t.Fatalf("short payload: %v", err)
	}
	if _, _, err := SplitAdd(PadTimestamp("") + "x"); !errors.Is(err, ErrMalformedArgument) {
		t.Fatalf("blank timestamp: %v", err)
	}
}

func TestParseInterval(t *testing.T) {
	a, b := "2024-01-01T00:00:00", "2024-01-02T00:00:00"
	tests := []struct {
		data       string
		start, end string
		wantErr    bool
	}{
		{"", "", "", false},
		{a, a, "", false},
		{IntervalData(a, ""), a, "", false},
		{IntervalData(a, b), a, b, false},
		{IntervalData(a, b) + "zz", "", "", true},
		{PadTimestamp("") + b, "", "", true},
	}
	for _, tt := range tests {
		start, end, err := ParseInterval(tt.data)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseInterval(%q) err=%v", tt.data, err)
		}
		if start != tt.start || end != tt.end {
			t.Fatalf("ParseInterval(%q)=%q,%q", tt.data, start, end)
		}
	}
}

func TestReasonFor(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", ErrAuthRequired), "authentication required"},
		{registry.ErrRegistryFull, "registry full"},
		{registry.ErrNotFound, "service not found"},
		{fmt.Errorf("grow: %w", logstore.ErrAllocation), "allocation failure"},
		{logstore.ErrClosed, "service unsubscribed"},
		{persist.ErrIO, "i/o failure"},
		{errors.New("surprise"), "i/o failure"},
	}
	for _, tt := range tests {
		if got := ReasonFor(tt.err); got != tt.want {
			t.Fatalf("ReasonFor(%v)=%q want %q", tt.err, got, tt.want)
		}
	}
}

func TestRepliesAreFixedSize(t *testing.T) {
	ok := SuccessReply(OpAdd)
	fail := FailureReply(ErrUnknownOp)
	if len(ok) != LineSize || len(fail) != LineSize {
		t.Fatalf("reply sizes %d %d", len(ok), len(fail))
	}
	if r := DecodeReply(ok); !r.OK || r.Text != "log added" {
		t.Fatalf("decode ok: %+v", r)
	}
	r := DecodeReply(fail)
	if r.OK || r.Text != "unknown command" {
		t.Fatalf("decode fail: %+v", r)
	}
	var fe *FailedError
	if !errors.As(r.Err(), &fe) || fe.Error() != "FAILED: unknown command" {
		t.Fatalf("err: %v", r.Err())
	}
}

func TestStatusFrame(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	b := StatusFrame(now, 8192, 17)
	if len(b) != StatusSize {
		t.Fatalf("size %d", len(b))
	}
	st, err := ParseStatus(b)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if st != (Status{Time: "2024-01-01T12:30:00", MemoryKB: 8, Records: 17}) {
		t.Fatalf("status %+v", st)
	}
}

func TestReadFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(CountFrame(51))
	buf.Write(FailureReply(ErrAuthRequired))

	b, err := ReadFrame(&buf, CountSize)
	if err != nil {
		t.Fatalf("count frame: %v", err)
	}
	if n, err := ParseCount(b); err != nil || n != 51 {
		t.Fatalf("count %d %v", n, err)
	}
	_, err = ReadFrame(&buf, CountSize)
	var fe *FailedError
	if !errors.As(err, &fe) || fe.Reason != "authentication required" {
		t.Fatalf("want failed reply, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("%d bytes left unread", buf.Len())
	}
}
