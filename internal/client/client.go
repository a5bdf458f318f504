// Package client speaks the logcache line protocol over a stream connection.
package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rzbill/logcache/internal/logstore"
	"github.com/rzbill/logcache/internal/protocol"
)

// Client issues one command at a time on a connection. It is safe for
// concurrent use; calls are serialised.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to a server at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client { return &Client{conn: conn} }

// Close closes the connection without sending DISCONNECT.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) send(op protocol.Op, data string) error {
	_, err := io.WriteString(c.conn, protocol.FormatRequest(op, data)+"\n")
	return err
}

// Do sends a raw request line and returns the reply. It must not be used for
// ops that send data frames.
func (c *Client) Do(line string) (protocol.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		return protocol.Reply{}, err
	}
	return protocol.ReadReply(c.conn)
}

func (c *Client) roundTrip(op protocol.Op, data string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.send(op, data); err != nil {
		return err
	}
	reply, err := protocol.ReadReply(c.conn)
	if err != nil {
		return err
	}
	return reply.Err()
}

// Connect attaches the session to service.
func (c *Client) Connect(service string) error { return c.roundTrip(protocol.OpConnect, service) }

// Subscribe attaches the session to service as a subscriber.
func (c *Client) Subscribe(service string) error { return c.roundTrip(protocol.OpSubscribe, service) }

// Add appends a record. timestamp should be in logstore.TimeLayout.
func (c *Client) Add(timestamp, text string) error {
	return c.roundTrip(protocol.OpAdd, protocol.AddData(timestamp, text))
}

// Flush persists the service's unflushed records.
func (c *Client) Flush() error { return c.roundTrip(protocol.OpFlush, "") }

// Disconnect ends the session and closes the connection.
func (c *Client) Disconnect() error {
	err := c.roundTrip(protocol.OpDisconnect, "")
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// Unsubscribe flushes and removes the service, then closes the connection.
func (c *Client) Unsubscribe() error {
	err := c.roundTrip(protocol.OpUnsubscribe, "")
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// Stat returns the server's view of the attached service.
func (c *Client) Stat() (protocol.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.send(protocol.OpStat, ""); err != nil {
		return protocol.Status{}, err
	}
	frame, err := protocol.ReadFrame(c.conn, protocol.StatusSize)
	if err != nil {
		return protocol.Status{}, err
	}
	st, err := protocol.ParseStatus(frame)
	if err != nil {
		return protocol.Status{}, err
	}
	reply, err := protocol.ReadReply(c.conn)
	if err != nil {
		return protocol.Status{}, err
	}
	return st, reply.Err()
}

// GetLogs returns the records with timestamps in [start, end]. An empty start
// returns every record; an empty end leaves the interval open above.
func (c *Client) GetLogs(start, end string) ([]logstore.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.send(protocol.OpGetLogs, protocol.IntervalData(start, end)); err != nil {
		return nil, err
	}
	frame, err := protocol.ReadFrame(c.conn, protocol.CountSize)
	if err != nil {
		return nil, err
	}
	n, err := protocol.ParseCount(frame)
	if err != nil {
		return nil, err
	}
	recs := make([]logstore.Record, 0, n)
	buf := make([]byte, logstore.RecordSize)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(c.conn, buf); err != nil {
			return nil, fmt.Errorf("read record %d of %d: %w", i, n, err)
		}
		rec, _ := logstore.DecodeRecord(buf)
		recs = append(recs, rec)
	}
	reply, err := protocol.ReadReply(c.conn)
	if err != nil {
		return nil, err
	}
	return recs, reply.Err()
}
