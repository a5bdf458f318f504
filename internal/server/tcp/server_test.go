package tcpserver

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rzbill/logcache/internal/client"
	cfgpkg "github.com/rzbill/logcache/internal/config"
	"github.com/rzbill/logcache/internal/persist"
	"github.com/rzbill/logcache/internal/runtime"
)

func newRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.UseMmap = false
	cfg.FsyncOnFlush = false
	rt, err := runtime.Open(runtime.Options{Config: cfg})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

// serve starts s on a loopback listener and returns its address and a
// function that stops it and returns the Serve error.
func serve(t *testing.T, s *Server) (string, func() error) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, l) }()
	var stopped bool
	var serveErr error
	stop := func() error {
		if !stopped {
			stopped = true
			cancel()
			select {
			case serveErr = <-errCh:
			case <-time.After(5 * time.Second):
				t.Fatalf("server did not stop")
			}
		}
		return serveErr
	}
	t.Cleanup(func() { _ = stop() })
	return l.Addr().String(), stop
}

func dial(t *testing.T, addr string) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestServeSessions(t *testing.T) {
	rt := newRuntime(t)
	addr, _ := serve(t, New(rt, Options{MaxSessions: 8}))

	a := dial(t, addr)
	b := dial(t, addr)
	if err := a.Connect("svc"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := a.Add("2024-01-01T00:00:00", "over tcp"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.Connect("svc"); err != nil {
		t.Fatalf("connect b: %v", err)
	}
	recs, err := b.GetLogs("", "")
	if err != nil || len(recs) != 1 || recs[0].Text() != "over tcp" {
		t.Fatalf("getlogs: %v %v", recs, err)
	}
}

func TestSessionLimitClosesExtraConnections(t *testing.T) {
	rt := newRuntime(t)
	s := New(rt, Options{MaxSessions: 1})
	addr, _ := serve(t, s)

	first := dial(t, addr)
	if err := first.Connect("svc"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Fatalf("extra connection should be closed, got %v", err)
	}

	if err := first.Add("2024-01-01T00:00:00", "still served"); err != nil {
		t.Fatalf("first session broken: %v", err)
	}
	if n := s.Sessions(); n != 1 {
		t.Fatalf("sessions %d", n)
	}
}

func TestShutdownFlushesAllServices(t *testing.T) {
	rt := newRuntime(t)
	addr, stop := serve(t, New(rt, Options{FlushOnShutdown: true}))

	c := dial(t, addr)
	if err := c.Connect("svc"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	for _, text := range []string{"one", "two"} {
		if err := c.Add("2024-01-01T00:00:00", text); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := stop(); err != nil {
		t.Fatalf("serve: %v", err)
	}
	recs, err := persist.ReadFile(rt.Writer().Path("svc"))
	if err != nil || len(recs) != 2 {
		t.Fatalf("persisted %d records: %v", len(recs), err)
	}
}

func TestCloseStopsServe(t *testing.T) {
	rt := newRuntime(t)
	s := New(rt, Options{})
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(context.Background(), l) }()
	for s.Addr() == nil {
		time.Sleep(time.Millisecond)
	}
	s.Close()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return")
	}
}
