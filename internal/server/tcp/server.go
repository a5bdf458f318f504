// Package tcpserver accepts line-protocol connections and runs one session
// goroutine per connection against a shared runtime.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	s := tcpserver.New(rt, tcpserver.Options{MaxSessions: 256})
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":5555")
package tcpserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rzbill/logcache/internal/metrics"
	"github.com/rzbill/logcache/internal/runtime"
	"github.com/rzbill/logcache/internal/session"
	"github.com/rzbill/logcache/pkg/id"
	"github.com/rzbill/logcache/pkg/log"
)

// Options configures the server.
type Options struct {
	Logger log.Logger
	// MaxSessions bounds concurrent sessions; further connections are closed
	// on accept. 0 means unlimited.
	MaxSessions int
	// FlushOnShutdown flushes every store after the last session ends.
	FlushOnShutdown bool
}

// Server owns the listener and the live sessions.
type Server struct {
	rt     *runtime.Runtime
	opts   Options
	logger log.Logger
	ids    *id.Generator

	mu    sync.Mutex
	lis   net.Listener
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// New constructs a server for rt.
func New(rt *runtime.Runtime, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Server{
		rt:     rt,
		opts:   opts,
		logger: logger.WithComponent("tcp"),
		ids:    id.NewGenerator(),
		conns:  make(map[net.Conn]struct{}),
	}
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Addr returns the bound address once serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Serve accepts connections on l until ctx is done. On return the listener
// and every live connection are closed and, if configured, all stores have
// been flushed.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	s.lis = l
	s.mu.Unlock()
	s.logger.Info("listening", log.Str("addr", l.Addr().String()))

	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	err := s.acceptLoop(ctx, l)
	s.closeConns()
	s.wg.Wait()
	if s.opts.FlushOnShutdown {
		if ferr := s.rt.FlushAll(context.WithoutCancel(ctx)); ferr != nil {
			s.logger.Error("flush on shutdown failed", log.Err(ferr))
			err = errors.Join(err, ferr)
		} else {
			s.logger.Info("flushed all services on shutdown")
		}
	}
	return err
}

func (s *Server) acceptLoop(ctx context.Context, l net.Listener) error {
	var backoff time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
				s.logger.Warn("accept failed; retrying", log.Err(err), log.Dur("backoff", backoff))
				time.Sleep(backoff)
				continue
			}
			return err
		}
		backoff = 0
		if !s.track(conn) {
			metrics.SessionsRejected.Inc()
			s.logger.Warn("session limit reached; closing connection",
				log.Str("remote", conn.RemoteAddr().String()),
				log.Int("max_sessions", s.opts.MaxSessions))
			_ = conn.Close()
			continue
		}
		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

// track registers conn unless the session limit is reached.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.MaxSessions > 0 && len(s.conns) >= s.opts.MaxSessions {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	sid := s.ids.Next().String()
	sess := session.New(conn, session.Options{Backend: s.rt, Logger: s.logger, ID: sid, Remote: remote})
	if err := sess.Serve(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Warn("session ended with error", log.Str("session", sid), log.Str("remote", remote), log.Err(err))
	}
}

// Close stops accepting and closes every live connection.
func (s *Server) Close() {
	s.mu.Lock()
	l := s.lis
	s.mu.Unlock()
	if l != nil {
		_ = l.Close()
	}
	s.closeConns()
}

// Sessions returns the number of live sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
