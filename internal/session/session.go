// Package session runs the line protocol for one client connection.
//
// A session starts unattached, attaches to a named service with CONNECT or
// SUBSCRIBE and ends after DISCONNECT, UNSUBSCRIBE, an over-long line or a
// transport error. Commands are handled strictly one at a time.
package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/rzbill/logcache/internal/logstore"
	"github.com/rzbill/logcache/internal/metrics"
	"github.com/rzbill/logcache/internal/protocol"
	"github.com/rzbill/logcache/internal/tracing"
	"github.com/rzbill/logcache/pkg/log"
)

// State is the attachment state of a session.
type State int

const (
	StateUnattached State = iota
	StateAttached
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnattached:
		return "unattached"
	case StateAttached:
		return "attached"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Backend is the shared server state a session operates on.
type Backend interface {
	Attach(ctx context.Context, name string, subscribe bool) (*logstore.Store, error)
	Detach(store *logstore.Store, subscribed bool)
	Append(store *logstore.Store, rec logstore.Record) error
	Flush(ctx context.Context, store *logstore.Store) (int, error)
	Unsubscribe(ctx context.Context, store *logstore.Store) error
}

// Options configures a Session.
type Options struct {
	Backend Backend
	Logger  log.Logger
	// ID and Remote label log lines and spans.
	ID     string
	Remote string
	// Now is the STAT clock.
	Now func() time.Time
}

// Session is the protocol state of one connection.
type Session struct {
	r       *bufio.Reader
	w       *bufio.Writer
	backend Backend
	base    log.Logger
	logger  log.Logger
	id      string
	remote  string
	now     func() time.Time

	state      State
	store      *logstore.Store
	subscribed bool
}

// New returns a session reading commands from and writing replies to rw.
func New(rw io.ReadWriter, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger = logger.WithComponent("session").With(log.Str("session", opts.ID), log.Str("remote", opts.Remote))
	return &Session{
		r:       bufio.NewReaderSize(rw, protocol.CommandSize),
		w:       bufio.NewWriterSize(rw, protocol.LineSize*2),
		backend: opts.Backend,
		base:    logger,
		logger:  logger,
		id:      opts.ID,
		remote:  opts.Remote,
		now:     now,
	}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Serve handles commands until the session terminates. It returns nil when
// the session ends through the protocol or the peer hangs up, and the
// transport error otherwise.
func (s *Session) Serve(ctx context.Context) error {
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()
	defer s.release()

	for s.state != StateTerminated {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := s.readLine()
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			// The rest of the line is unread and cannot be skipped reliably.
			s.logger.Warn("command exceeds receive buffer", log.Int("limit", protocol.CommandSize))
			metrics.Commands.WithLabelValues(protocol.OpInvalid.String(), protocol.Result(protocol.ErrMessageTooLong)).Inc()
			s.state = StateTerminated
			if _, err := s.w.Write(protocol.FailureReply(protocol.ErrMessageTooLong)); err != nil {
				return err
			}
			return s.w.Flush()
		case errors.Is(err, io.EOF):
			s.logger.Debug("peer closed")
			return nil
		case err != nil:
			return err
		}
		s.handle(ctx, line)
		if err := s.w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) readLine() ([]byte, error) {
	line, err := s.r.ReadSlice('\n')
	if err != nil {
		// A partial line before EOF is dropped.
		return nil, err
	}
	return bytes.TrimSuffix(line[:len(line)-1], []byte{'\r'}), nil
}

// handle runs one command and buffers its frames and reply.
func (s *Session) handle(ctx context.Context, line []byte) {
	req, err := protocol.Parse(line)
	op := req.Op
	ctx, end := tracing.StartSpan(ctx, "logcache."+op.String(), "session", s.id, "remote", s.remote)

	dispatched := false
	if err == nil {
		err = s.gate(req)
	}
	if err == nil {
		dispatched = true
		err = s.dispatch(ctx, req)
	}
	end(err)
	metrics.Commands.WithLabelValues(op.String(), protocol.Result(err)).Inc()

	if err != nil {
		s.logger.Debug("command failed", log.Str("op", op.String()), log.Err(err))
		_, _ = s.w.Write(protocol.FailureReply(err))
	} else {
		_, _ = s.w.Write(protocol.SuccessReply(op))
	}
	if dispatched && op.Descriptor().Terminal {
		s.state = StateTerminated
	}
}

func (s *Session) gate(req protocol.Request) error {
	if req.Op.Descriptor().RequiresAttach && s.state != StateAttached {
		return protocol.ErrAuthRequired
	}
	return protocol.ValidateData(req.Data)
}

func (s *Session) dispatch(ctx context.Context, req protocol.Request) error {
	switch req.Op {
	case protocol.OpConnect:
		return s.attach(ctx, req.Data, false)
	case protocol.OpSubscribe:
		return s.attach(ctx, req.Data, true)
	case protocol.OpStat:
		return s.stat()
	case protocol.OpAdd:
		return s.add(req.Data)
	case protocol.OpFlush:
		_, err := s.backend.Flush(ctx, s.store)
		return err
	case protocol.OpDisconnect:
		return nil
	case protocol.OpUnsubscribe:
		return s.unsubscribe(ctx)
	case protocol.OpGetLogs:
		return s.getLogs(req.Data)
	}
	return protocol.ErrUnknownOp
}

// attach resolves name and replaces any current attachment. A failed attach
// leaves the current attachment in place.
func (s *Session) attach(ctx context.Context, name string, subscribe bool) error {
	if name == "" {
		return fmt.Errorf("%w: missing service name", protocol.ErrMalformedArgument)
	}
	store, err := s.backend.Attach(ctx, name, subscribe)
	if err != nil {
		return err
	}
	s.release()
	s.store, s.subscribed, s.state = store, subscribe, StateAttached
	s.logger = s.base.With(log.Str("service", name))
	s.logger.Info("attached", log.Bool("subscribe", subscribe))
	return nil
}

// release drops the current attachment.
func (s *Session) release() {
	if s.store != nil {
		s.backend.Detach(s.store, s.subscribed)
	}
	s.store, s.subscribed = nil, false
}

func (s *Session) stat() error {
	if s.store.Closed() {
		return logstore.ErrClosed
	}
	st := s.store.Stats()
	_, err := s.w.Write(protocol.StatusFrame(s.now(), st.MemoryBytes, st.Records))
	return err
}

func (s *Session) add(data string) error {
	ts, text, err := protocol.SplitAdd(data)
	if err != nil {
		return err
	}
	return s.backend.Append(s.store, logstore.NewRecord(ts, text))
}

func (s *Session) unsubscribe(ctx context.Context) error {
	store := s.store
	if err := s.backend.Unsubscribe(ctx, store); err != nil {
		return err
	}
	// The store is gone; nothing to detach from.
	s.store, s.subscribed = nil, false
	return nil
}

// getLogs copies the matching records out before sending, so the count frame
// always agrees with the records that follow.
func (s *Session) getLogs(data string) error {
	start, end, err := protocol.ParseInterval(data)
	if err != nil {
		return err
	}
	pred := logstore.All
	if start != "" {
		pred = logstore.InInterval(start, end)
	}
	if s.store.Closed() {
		return logstore.ErrClosed
	}
	recs := slices.Collect(s.store.Select(pred))
	if _, err := s.w.Write(protocol.CountFrame(len(recs))); err != nil {
		return err
	}
	buf := make([]byte, 0, logstore.RecordSize)
	for _, rec := range recs {
		if _, err := s.w.Write(rec.AppendBinary(buf[:0])); err != nil {
			return err
		}
	}
	return nil
}
