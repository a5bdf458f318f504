package grpcserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/rzbill/logcache/internal/runtime"
	"github.com/rzbill/logcache/pkg/log"
)

// healthInterval is how often runtime health is re-evaluated.
const healthInterval = 5 * time.Second

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt      *runtime.Runtime
	grpc    *grpc.Server
	watcher *healthWatcher
	logger  log.Logger

	mu  sync.Mutex
	lis net.Listener
}

// New constructs a gRPC server and registers the health and reflection
// services.
func New(rt *runtime.Runtime, logger log.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = logger.WithComponent("grpc")
	opts = append(opts, grpc.ChainUnaryInterceptor(logUnary(logger)))
	s := &Server{
		rt:      rt,
		grpc:    grpc.NewServer(opts...),
		logger:  logger,
		watcher: &healthWatcher{rt: rt, srv: health.NewServer(), logger: logger},
	}
	healthpb.RegisterHealthServer(s.grpc, s.watcher.srv)
	reflection.Register(s.grpc)
	s.watcher.update(context.Background())
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done, refreshing health in the background.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	s.lis = l
	s.mu.Unlock()
	s.logger.Info("listening", log.Str("addr", l.Addr().String()))
	go s.watcher.run(ctx, healthInterval)
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.watcher.srv.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

// Addr returns the bound address, or nil before Serve starts.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

func logUnary(logger log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []log.Field{log.Str("method", info.FullMethod), log.Dur("elapsed", time.Since(start))}
		if err != nil {
			logger.Warn("rpc failed", append(fields, log.Err(err))...)
		} else {
			logger.Debug("rpc", fields...)
		}
		return resp, err
	}
}
