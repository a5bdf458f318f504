package serverrun

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	cfgpkg "github.com/rzbill/logcache/internal/config"
	"github.com/rzbill/logcache/internal/metrics"
	"github.com/rzbill/logcache/internal/runtime"
	grpcserver "github.com/rzbill/logcache/internal/server/grpc"
	httpserver "github.com/rzbill/logcache/internal/server/http"
	tcpserver "github.com/rzbill/logcache/internal/server/tcp"
	"github.com/rzbill/logcache/internal/tracing"
	logpkg "github.com/rzbill/logcache/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing
var getenv = os.Getenv

// Options configures Run.
type Options struct {
	Config cfgpkg.Config
	// Logger overrides the process logger built from LMC_LOG_LEVEL and
	// LMC_LOG_FORMAT.
	Logger logpkg.Logger
	// Listener, when set, is used for the line protocol instead of binding
	// Config.ListenAddr.
	Listener net.Listener
}

// newLogger builds the process logger from the environment, falling back to
// text output at the parsed level.
func newLogger() logpkg.Logger {
	cfg := &logpkg.Config{
		Level:  getenvDefault("LMC_LOG_LEVEL", "info"),
		Format: getenvDefault("LMC_LOG_FORMAT", "text"),
	}
	l, err := logpkg.ApplyConfig(cfg)
	if err == nil {
		return l
	}
	lvl := logpkg.InfoLevel
	if parsed, e := logpkg.ParseLevel(cfg.Level); e == nil {
		lvl = parsed
	}
	return logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
}

// Run starts the line-protocol listener plus the optional admin HTTP and gRPC
// servers, and blocks until ctx is cancelled or a listener fails.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := opts.Logger
	if logger == nil {
		logger = newLogger()
		logpkg.RedirectStdLog(logger)
	}
	metrics.Register()
	shutdownTracing, err := tracing.Setup(cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	rt, err := runtime.Open(runtime.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("starting logcache",
		logpkg.Str("listen", cfg.ListenAddr),
		logpkg.Str("http", cfg.AdminHTTPAddr),
		logpkg.Str("grpc", cfg.GRPCAddr),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Str("log_dir", cfg.ResolvedLogDir()),
		logpkg.Int("max_services", cfg.MaxServices),
		logpkg.Int("max_sessions", cfg.MaxSessions),
	)

	sctx, cancel := context.WithCancelCause(sctx)
	defer cancel(nil)
	var wg sync.WaitGroup
	serve := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(sctx); err != nil && sctx.Err() == nil {
				logger.Error(name+" server failed", logpkg.Err(err))
				cancel(err)
			}
		}()
	}

	tsrv := tcpserver.New(rt, tcpserver.Options{
		Logger:          logger,
		MaxSessions:     cfg.MaxSessions,
		FlushOnShutdown: cfg.FlushOnShutdown,
	})
	serve("tcp", func(ctx context.Context) error {
		if opts.Listener != nil {
			return tsrv.Serve(ctx, opts.Listener)
		}
		return tsrv.ListenAndServe(ctx, cfg.ListenAddr)
	})

	var hsrv *httpserver.Server
	if cfg.AdminHTTPAddr != "" {
		hsrv = httpserver.New(rt, logger)
		serve("http", func(ctx context.Context) error { return hsrv.ListenAndServe(ctx, cfg.AdminHTTPAddr) })
	}
	var gsrv *grpcserver.Server
	if cfg.GRPCAddr != "" {
		gsrv = grpcserver.New(rt, logger)
		serve("grpc", func(ctx context.Context) error { return gsrv.ListenAndServe(ctx, cfg.GRPCAddr) })
	}

	<-sctx.Done()
	// Stop every listener before the catalog closes.
	tsrv.Close()
	if hsrv != nil {
		hsrv.Close()
	}
	if gsrv != nil {
		gsrv.Close()
	}
	wg.Wait()
	if err := context.Cause(sctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger.Info("logcache stopped")
	return nil
}
