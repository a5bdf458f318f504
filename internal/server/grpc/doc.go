// Package grpcserver hosts the gRPC endpoint of the cache: the standard
// grpc.health.v1 service, driven by runtime health, and server reflection.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	s := grpcserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":50051")
package grpcserver
