package controllers

import "github.com/rzbill/logcache/internal/runtime"

// recordJSON is one log record in a response.
type recordJSON struct {
	Index     int    `json:"index"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

// listServicesResp is the body of GET /v1/services.
type listServicesResp struct {
	Services []runtime.ServiceInfo `json:"services"`
	Capacity int                   `json:"capacity"`
}

// logsResp is the body of GET /v1/services/logs.
type logsResp struct {
	Service string       `json:"service"`
	Count   int          `json:"count"`
	Records []recordJSON `json:"records"`
	// Truncated is set when limit cut the result short.
	Truncated bool `json:"truncated,omitempty"`
}

// flushResp is the body of POST /v1/services/flush.
type flushResp struct {
	Service string `json:"service"`
	Written int    `json:"written"`
	Flushed int    `json:"flushed"`
}
