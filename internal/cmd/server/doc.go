// Package serverrun exposes the Run entrypoint used by the CLI to start the
// cache: the line-protocol listener, the admin HTTP server and the gRPC health
// endpoint, sharing one runtime until shutdown.
//
// Example:
//
//	cfg, _ := config.Load("logcache.yaml")
//	config.FromEnv(&cfg)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, serverrun.Options{Config: cfg})
package serverrun
