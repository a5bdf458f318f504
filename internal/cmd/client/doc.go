// Package client contains Cobra CLI commands for logcache.
//
// The `log` group speaks the line protocol (LMC_ADDR, default
// 127.0.0.1:5555); each invocation is one session that attaches to
// --service, runs a single operation and disconnects. The `services` group
// reads the admin HTTP API and `health` queries the gRPC health service
// (LMC_GRPC, default 127.0.0.1:50051).
//
// Examples:
//
//	logcache log add -s web --time 2024-01-01T00:00:00 GET /index.html
//	tail -f access.log | logcache log pipe -s web --flush
//	logcache log get -s web --start 2024-01-01T00:00:00 --json
//	logcache services logs -s web --filter 'text.contains("500")'
//	logcache health
package client
