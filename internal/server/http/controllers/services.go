package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rzbill/logcache/internal/logfilter"
	"github.com/rzbill/logcache/internal/logstore"
	"github.com/rzbill/logcache/internal/registry"
	"github.com/rzbill/logcache/internal/runtime"
	"github.com/rzbill/logcache/pkg/log"
)

// defaultTailInterval is how often a tail polls its store for new records.
const defaultTailInterval = 500 * time.Millisecond

// ServicesController exposes the registered services.
type ServicesController struct {
	rt     *runtime.Runtime
	logger log.Logger
}

// NewServicesController creates a new services controller.
func NewServicesController(rt *runtime.Runtime, logger log.Logger) *ServicesController {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &ServicesController{rt: rt, logger: logger.WithComponent("http")}
}

// RegisterRoutes registers service routes with the given mux.
func (c *ServicesController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/services", c.handleList)
	mux.HandleFunc("/v1/services/logs", c.handleLogs)
	mux.HandleFunc("/v1/services/flush", c.handleFlush)
	mux.HandleFunc("/v1/services/tail", c.handleTail)
}

func (c *ServicesController) handleList(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, listServicesResp{Services: c.rt.Services(), Capacity: c.rt.Config().MaxServices})
}

// lookup resolves the name query parameter, writing the error response
// itself when the service is unknown.
func (c *ServicesController) lookup(w http.ResponseWriter, r *http.Request) (*logstore.Store, bool) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return nil, false
	}
	store, ok := c.rt.Lookup(name)
	if !ok {
		writeStoreError(w, registry.ErrNotFound)
		return nil, false
	}
	return store, true
}

// handleLogs returns the records of a service in append order, optionally
// restricted to a timestamp interval and a CEL filter.
//
// Query: name (required), start, end, filter, limit.
func (c *ServicesController) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	store, ok := c.lookup(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter, err := logfilter.Compile(q.Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter: "+err.Error())
		return
	}
	inInterval := logstore.All
	if start := q.Get("start"); start != "" {
		inInterval = logstore.InInterval(start, q.Get("end"))
	}
	limit := parseLimit(q.Get("limit"))

	resp := logsResp{Service: store.Name(), Records: []recordJSON{}}
	index := 0
	for rec := range store.Select(logstore.All) {
		i := index
		index++
		if !inInterval(rec) || !filter.Match(i, rec) {
			continue
		}
		if limit > 0 && len(resp.Records) == limit {
			resp.Truncated = true
			break
		}
		resp.Records = append(resp.Records, recordJSON{Index: i, Timestamp: rec.Timestamp(), Text: rec.Text()})
	}
	if store.Closed() {
		writeStoreError(w, logstore.ErrClosed)
		return
	}
	resp.Count = len(resp.Records)
	writeJSON(w, resp)
}

func (c *ServicesController) handleFlush(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	store, ok := c.lookup(w, r)
	if !ok {
		return
	}
	n, err := c.rt.Flush(r.Context(), store)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	c.logger.Info("flushed via admin api", log.Str("service", store.Name()), log.Int("records", n))
	writeJSON(w, flushResp{Service: store.Name(), Written: n, Flushed: store.Stats().Flushed})
}

// handleTail streams records as Server-Sent Events, starting at index from
// (default 0) and following new appends until the client goes away or the
// service is unsubscribed.
//
// Query: name (required), from, interval_ms.
func (c *ServicesController) handleTail(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	store, ok := c.lookup(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	next, _ := strconv.Atoi(q.Get("from"))
	next = max(next, 0)
	interval := defaultTailInterval
	if ms := parseLimit(q.Get("interval_ms")); ms > 0 {
		interval = time.Duration(ms) * time.Millisecond
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	sink := sseWriter{w: w}
	sink.Flush()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if count := store.Count(); next < count {
			recs, err := store.Range(next, count)
			if err != nil {
				return
			}
			for _, rec := range recs {
				if err := sink.Send(recordJSON{Index: next, Timestamp: rec.Timestamp(), Text: rec.Text()}); err != nil {
					return
				}
				next++
			}
			sink.Flush()
		}
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if store.Closed() {
				return
			}
		}
	}
}
