package runtime

import (
	"fmt"
	"time"

	"github.com/rzbill/logcache/internal/logstore"
	"github.com/rzbill/logcache/internal/metrics"
	"github.com/rzbill/logcache/pkg/log"
)

// countingAllocator reports allocated pages to metrics.StorePages and logs
// buffers it fails to release.
type countingAllocator struct {
	logstore.Allocator
	logger log.Logger
}

func (a countingAllocator) Alloc(pages int) ([]byte, error) {
	buf, err := a.Allocator.Alloc(pages)
	if err == nil {
		metrics.StorePages.Add(float64(pages))
	}
	return buf, err
}

func (a countingAllocator) Free(buf []byte) error {
	if err := a.Allocator.Free(buf); err != nil {
		a.logger.Warn("release store buffer", log.Int("bytes", len(buf)), log.Err(err))
		return err
	}
	if len(buf) > 0 {
		metrics.StorePages.Sub(float64(len(buf) / a.PageSize()))
	}
	return nil
}

// catalogMetrics feeds Pebble timings into metrics.CatalogLatency.
type catalogMetrics struct{}

func (catalogMetrics) ObserveWrite(elapsed time.Duration, _ int) {
	metrics.CatalogLatency.WithLabelValues("write").Observe(elapsed.Seconds())
}

func (catalogMetrics) ObserveRead(elapsed time.Duration, _ int) {
	metrics.CatalogLatency.WithLabelValues("read").Observe(elapsed.Seconds())
}

// pebbleLogger routes Pebble's log output through the server logger.
type pebbleLogger struct {
	log.Logger
}

func (l pebbleLogger) Fatalf(format string, args ...interface{}) {
	l.Logger.Fatal(fmt.Sprintf(format, args...))
}
