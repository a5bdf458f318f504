package client

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rzbill/logcache/internal/logstore"
	"github.com/rzbill/logcache/internal/protocol"
)

// scripted answers each request line with the frames returned by reply and
// records the lines it saw.
func scripted(t *testing.T, reply func(line string) [][]byte) (*Client, <-chan string) {
	t.Helper()
	srv, cli := net.Pipe()
	lines := make(chan string, 16)
	go func() {
		defer srv.Close()
		r := bufio.NewReader(srv)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			line = strings.TrimSuffix(line, "\n")
			lines <- line
			for _, f := range reply(line) {
				if _, err := srv.Write(f); err != nil {
					return
				}
			}
		}
	}()
	c := New(cli)
	t.Cleanup(func() { _ = c.Close() })
	return c, lines
}

func TestRoundTripSuccessAndFailure(t *testing.T) {
	c, lines := scripted(t, func(line string) [][]byte {
		if strings.HasPrefix(line, "CONNECT") {
			return [][]byte{protocol.SuccessReply(protocol.OpConnect)}
		}
		return [][]byte{protocol.FailureReply(protocol.ErrAuthRequired)}
	})
	if err := c.Connect("svc1"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if got := <-lines; got != "CONNECT svc1" {
		t.Fatalf("request line %q", got)
	}
	err := c.Add("2024-01-01T00:00:00", "boot")
	var fe *protocol.FailedError
	if !errors.As(err, &fe) || fe.Reason != "authentication required" {
		t.Fatalf("want auth failure, got %v", err)
	}
	if got := <-lines; got != "ADD "+protocol.AddData("2024-01-01T00:00:00", "boot") {
		t.Fatalf("request line %q", got)
	}
}

func TestStatDecodesFrame(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c, _ := scripted(t, func(string) [][]byte {
		return [][]byte{protocol.StatusFrame(now, 8192, 3), protocol.SuccessReply(protocol.OpStat)}
	})
	st, err := c.Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	want := protocol.Status{Time: "2024-01-01T12:00:00", MemoryKB: 8, Records: 3}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestGetLogsReadsCountedRecords(t *testing.T) {
	recs := []logstore.Record{
		logstore.NewRecord("2024-01-01T00:00:01", "one"),
		logstore.NewRecord("2024-01-01T00:00:02", "two"),
	}
	c, lines := scripted(t, func(string) [][]byte {
		frames := [][]byte{protocol.CountFrame(len(recs))}
		for _, r := range recs {
			b, _ := r.MarshalBinary()
			frames = append(frames, b)
		}
		return append(frames, protocol.SuccessReply(protocol.OpGetLogs))
	})
	got, err := c.GetLogs("2024-01-01T00:00:01", "2024-01-01T00:00:02")
	if err != nil {
		t.Fatalf("getlogs: %v", err)
	}
	if len(got) != 2 || got[0] != recs[0] || got[1] != recs[1] {
		t.Fatalf("unexpected records %v", got)
	}
	if line := <-lines; len(line) != len("GETLOGS ")+2*logstore.TimestampWidth {
		t.Fatalf("interval not fixed width: %q", line)
	}
}

func TestGetLogsFailureBeforeCount(t *testing.T) {
	c, _ := scripted(t, func(string) [][]byte {
		return [][]byte{protocol.FailureReply(protocol.ErrMalformedArgument)}
	})
	_, err := c.GetLogs("2024-01-01T00:00:01", "")
	var fe *protocol.FailedError
	if !errors.As(err, &fe) || fe.Reason != "invalid argument provided" {
		t.Fatalf("want malformed failure, got %v", err)
	}
	// The whole reply was consumed; the connection is still in sync.
	if _, err := c.GetLogs("", ""); !errors.As(err, &fe) {
		t.Fatalf("second call: %v", err)
	}
}

func TestDisconnectClosesConnection(t *testing.T) {
	c, _ := scripted(t, func(string) [][]byte {
		return [][]byte{protocol.SuccessReply(protocol.OpDisconnect)}
	})
	if err := c.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := c.Flush(); err == nil {
		t.Fatalf("expected error on closed connection")
	}
}
