package client

import (
	"context"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	cacheclient "github.com/rzbill/logcache/internal/client"
	"github.com/rzbill/logcache/internal/logstore"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// addrFromEnv returns the line-protocol address from LMC_ADDR or a default.
func addrFromEnv() string {
	if addr := os.Getenv("LMC_ADDR"); addr != "" {
		return addr
	}
	return "127.0.0.1:5555"
}

// grpcAddrFromEnv returns the gRPC server address from LMC_GRPC or a default.
func grpcAddrFromEnv() string {
	if addr := os.Getenv("LMC_GRPC"); addr != "" {
		return addr
	}
	return "127.0.0.1:50051"
}

// dialGRPC builds a client for the gRPC endpoint with insecure transport for local/dev.
func dialGRPC() (*grpc.ClientConn, error) {
	return grpc.NewClient(grpcAddrFromEnv(), grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// attach dials the server and attaches the session to service.
func attach(ctx context.Context, service string, subscribe bool) (*cacheclient.Client, error) {
	c, err := cacheclient.Dial(ctx, addrFromEnv())
	if err != nil {
		return nil, err
	}
	op := c.Connect
	if subscribe {
		op = c.Subscribe
	}
	if err := op(service); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// withSession attaches to service, runs fn and ends the session with
// DISCONNECT.
func withSession(ctx context.Context, service string, subscribe bool, fn func(*cacheclient.Client) error) error {
	c, err := attach(ctx, service, subscribe)
	if err != nil {
		return err
	}
	err = fn(c)
	if derr := c.Disconnect(); err == nil {
		err = derr
	}
	return err
}

// recordOut is the JSON form of a record printed by the CLI.
type recordOut struct {
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

func toRecordOut(r logstore.Record) recordOut {
	return recordOut{Timestamp: r.Timestamp(), Text: r.Text()}
}
