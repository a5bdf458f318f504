package runtime

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/logcache/internal/catalog"
	cfgpkg "github.com/rzbill/logcache/internal/config"
	"github.com/rzbill/logcache/internal/logstore"
	"github.com/rzbill/logcache/internal/metrics"
	"github.com/rzbill/logcache/internal/persist"
	"github.com/rzbill/logcache/internal/protocol"
	"github.com/rzbill/logcache/internal/registry"
	pebblestore "github.com/rzbill/logcache/internal/storage/pebble"
	"github.com/rzbill/logcache/internal/tracing"
	"github.com/rzbill/logcache/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger log.Logger
	// Allocator overrides the page allocator chosen from Config.
	Allocator logstore.Allocator
	// OpenFile overrides how service files are opened.
	OpenFile func(path string) (persist.File, error)
}

// Runtime owns the shared state of one server.
type Runtime struct {
	config   cfgpkg.Config
	logger   log.Logger
	db       *pebblestore.DB
	catalog  *catalog.Catalog
	registry *registry.Registry
	writer   *persist.Writer
	nameRE   *regexp.Regexp
	closed   atomic.Bool
}

// Open validates the config, opens the catalog and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = logger.WithComponent("runtime")
	nameRE, err := regexp.Compile(cfg.ServiceNameRegex)
	if err != nil {
		return nil, err
	}

	fsync, err := pebblestore.ParseFsyncMode(cfg.CatalogFsync)
	if err != nil {
		return nil, err
	}
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       cfg.MetaDir(),
		Fsync:         fsync,
		PebbleOptions: &pebble.Options{Logger: pebbleLogger{logger.WithComponent("pebble")}},
		Metrics:       catalogMetrics{},
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	alloc := opts.Allocator
	if alloc == nil {
		alloc = logstore.NewAllocator(cfg.UseMmap, cfg.PageSize)
	}
	var rotator persist.Rotator = persist.NopRotator{}
	if cfg.Rotation.MaxBytes > 0 || cfg.Rotation.MaxAgeSeconds > 0 {
		rotator = persist.SizeRotator{MaxBytes: cfg.Rotation.MaxBytes, MaxAge: cfg.Rotation.MaxAge()}
	}

	rt := &Runtime{
		config:   cfg,
		logger:   logger,
		db:       db,
		catalog:  catalog.New(db),
		registry: registry.New(cfg.MaxServices, countingAllocator{Allocator: alloc, logger: logger}),
		writer: persist.NewWriter(persist.Options{
			Dir:     cfg.ResolvedLogDir(),
			Rotator: rotator,
			Fsync:   cfg.FsyncOnFlush,
			Open:    opts.OpenFile,
		}),
		nameRE: nameRE,
	}
	logger.Info("runtime opened",
		log.Str("data_dir", cfg.DataDir),
		log.Str("log_dir", cfg.ResolvedLogDir()),
		log.Int("max_services", cfg.MaxServices),
		log.Int("page_size", alloc.PageSize()))
	return rt, nil
}

// Close closes the catalog. Stores are not flushed; see FlushAll.
func (r *Runtime) Close() error {
	if r.db == nil || r.closed.Swap(true) {
		return nil
	}
	return r.db.Close()
}

// CheckHealth verifies the catalog is readable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.db == nil || r.closed.Load() {
		return errors.New("catalog not open")
	}
	return r.db.CheckHealth()
}

// ValidName reports whether name may be used as a service name.
func (r *Runtime) ValidName(name string) bool { return r.nameRE.MatchString(name) }

// Attach resolves or creates the store of a service. A subscribing attach
// counts towards the store's subscribers until Detach.
func (r *Runtime) Attach(ctx context.Context, name string, subscribe bool) (*logstore.Store, error) {
	_, end := tracing.StartSpan(ctx, "runtime.Attach", "service", name)
	store, err := r.attach(name, subscribe)
	end(err)
	return store, err
}

func (r *Runtime) attach(name string, subscribe bool) (*logstore.Store, error) {
	if !r.ValidName(name) {
		return nil, fmt.Errorf("%w: service name %q", protocol.ErrMalformedArgument, name)
	}
	store, created, err := r.registry.ResolveOrCreate(name)
	if err != nil {
		return nil, err
	}
	if created {
		metrics.Services.Set(float64(r.registry.Len()))
		r.logger.Info("service created", log.Str("service", name))
	}
	if _, err := r.catalog.Ensure(name); err != nil {
		r.logger.Warn("catalog update failed", log.Str("service", name), log.Err(err))
	}
	if subscribe {
		store.AddSubscriber()
	}
	return store, nil
}

// Detach releases a subscription taken by Attach.
func (r *Runtime) Detach(store *logstore.Store, subscribed bool) {
	if subscribed {
		store.RemoveSubscriber()
	}
}

// Append adds rec to store.
func (r *Runtime) Append(store *logstore.Store, rec logstore.Record) error {
	if err := store.Append(rec); err != nil {
		return err
	}
	metrics.RecordsAppended.Inc()
	return nil
}

// Flush persists the unflushed records of store and updates its catalog entry.
func (r *Runtime) Flush(ctx context.Context, store *logstore.Store) (int, error) {
	_, end := tracing.StartSpan(ctx, "runtime.Flush", "service", store.Name())
	n, err := r.flush(store)
	end(err)
	return n, err
}

func (r *Runtime) flush(store *logstore.Store) (int, error) {
	start := time.Now()
	n, err := r.writer.Flush(store)
	metrics.FlushRecords.Add(float64(n))
	if err != nil {
		if errors.Is(err, persist.ErrIO) {
			metrics.FlushErrors.Inc()
		}
		r.logger.Error("flush failed", log.Str("service", store.Name()), log.Int("written", n), log.Err(err))
		return n, err
	}
	if n == 0 {
		return 0, nil
	}
	if _, err := r.catalog.RecordFlush(store.Name(), r.writer.Path(store.Name()), n); err != nil {
		r.logger.Warn("catalog update failed", log.Str("service", store.Name()), log.Err(err))
	}
	r.logger.Debug("flushed", log.Str("service", store.Name()), log.Int("records", n), log.Dur("elapsed", time.Since(start)))
	return n, nil
}

// Unsubscribe drains store to disk, removes it from the registry, releases
// its memory and drops its catalog entry; the service file is kept. Appends
// are rejected while the final flush runs. If the flush fails the store stays
// registered and writable.
func (r *Runtime) Unsubscribe(ctx context.Context, store *logstore.Store) error {
	ctx, end := tracing.StartSpan(ctx, "runtime.Unsubscribe", "service", store.Name())
	err := r.unsubscribe(ctx, store)
	end(err)
	return err
}

func (r *Runtime) unsubscribe(ctx context.Context, store *logstore.Store) error {
	name := store.Name()
	store.Seal()
	if _, err := r.Flush(ctx, store); err != nil {
		store.Unseal()
		return err
	}
	if err := r.registry.RemoveStore(store); err != nil {
		return err
	}
	metrics.Services.Set(float64(r.registry.Len()))
	if err := store.Destroy(); err != nil {
		return err
	}
	if err := r.catalog.Delete(name); err != nil {
		r.logger.Warn("catalog delete failed", log.Str("service", name), log.Err(err))
	}
	r.logger.Info("service unsubscribed", log.Str("service", name))
	return nil
}

// FlushAll flushes every registered store and returns the joined errors.
func (r *Runtime) FlushAll(ctx context.Context) error {
	var errs []error
	for _, e := range r.registry.Entries() {
		if _, err := r.Flush(ctx, e.Store); err != nil && !errors.Is(err, logstore.ErrClosed) {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Lookup returns the registered store of a service.
func (r *Runtime) Lookup(name string) (*logstore.Store, bool) { return r.registry.Lookup(name) }

// ServiceInfo describes one registered service.
type ServiceInfo struct {
	Name  string         `json:"name"`
	Stats logstore.Stats `json:"stats"`
	Meta  *catalog.Meta  `json:"meta,omitempty"`
}

// Services lists registered services in registration order.
func (r *Runtime) Services() []ServiceInfo {
	entries := r.registry.Entries()
	out := make([]ServiceInfo, 0, len(entries))
	for _, e := range entries {
		info := ServiceInfo{Name: e.Name, Stats: e.Store.Stats()}
		if m, err := r.catalog.Get(e.Name); err == nil {
			info.Meta = &m
		}
		out = append(out, info)
	}
	return out
}

// Catalog exposes the service catalog.
func (r *Runtime) Catalog() *catalog.Catalog { return r.catalog }

// Writer exposes the persistence writer.
func (r *Runtime) Writer() *persist.Writer { return r.writer }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
