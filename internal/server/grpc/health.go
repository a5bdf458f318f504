package grpcserver

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rzbill/logcache/internal/runtime"
	"github.com/rzbill/logcache/pkg/log"
)

// ServiceName is the health service name reported for the cache itself.
const ServiceName = "logcache.v1.LogCache"

// healthWatcher mirrors runtime health into a grpc health server.
type healthWatcher struct {
	rt     *runtime.Runtime
	srv    *health.Server
	logger log.Logger
}

// update sets the status of both the overall server and ServiceName.
func (h *healthWatcher) update(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.rt.CheckHealth(ctx); err != nil {
		h.logger.Warn("health check failed", log.Err(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(ServiceName, status)
	return status
}

// run refreshes the status every interval until ctx is done.
func (h *healthWatcher) run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.update(ctx)
		}
	}
}
