// Package catalog keeps durable per-service metadata in Pebble: when a service
// was first attached, how many records have been persisted for it and when it
// was last flushed. It survives restarts, unlike the in-memory stores.
package catalog

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	pebblestore "github.com/rzbill/logcache/internal/storage/pebble"
)

// Meta holds the durable metadata of one service.
type Meta struct {
	Name             string `json:"name"`
	CreatedAtMs      int64  `json:"createdAtMs"`
	LastAttachMs     int64  `json:"lastAttachMs"`
	PersistedRecords uint64 `json:"persistedRecords"`
	Flushes          uint64 `json:"flushes"`
	LastFlushMs      int64  `json:"lastFlushMs"`
	File             string `json:"file,omitempty"`
}

var metaPrefix = []byte("svcmeta/")

func metaKey(name string) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(name))
	k = append(k, metaPrefix...)
	return append(k, name...)
}

// NowMs is swapped in tests.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Catalog reads and updates service metadata.
type Catalog struct {
	db *pebblestore.DB
	// mu orders read-modify-write updates of the same key.
	mu sync.Mutex
}

// New returns a catalog backed by db.
func New(db *pebblestore.DB) *Catalog { return &Catalog{db: db} }

// Ensure creates the metadata record for name if absent and stamps the attach
// time. Idempotent: existing counters are preserved.
func (c *Catalog) Ensure(name string) (Meta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.getLocked(name)
	if err != nil {
		m = Meta{Name: name, CreatedAtMs: NowMs()}
	}
	m.LastAttachMs = NowMs()
	return m, c.putLocked(m)
}

// RecordFlush adds n persisted records to name's counters.
func (c *Catalog) RecordFlush(name, file string, n int) (Meta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.getLocked(name)
	if err != nil {
		m = Meta{Name: name, CreatedAtMs: NowMs()}
	}
	m.PersistedRecords += uint64(n)
	m.Flushes++
	m.LastFlushMs = NowMs()
	m.File = file
	return m, c.putLocked(m)
}

// Get returns the metadata for name.
func (c *Catalog) Get(name string) (Meta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(name)
}

// Delete drops the metadata of name. Deleting a missing entry is not an error.
func (c *Catalog) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Delete(metaKey(name))
}

// List returns every service known to the catalog in name order.
func (c *Catalog) List() ([]Meta, error) {
	var out []Meta
	err := c.db.ScanPrefix(metaPrefix, func(_, v []byte) error {
		var m Meta
		if err := json.Unmarshal(v, &m); err != nil {
			return nil
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

func (c *Catalog) getLocked(name string) (Meta, error) {
	b, err := c.db.Get(metaKey(name))
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, errors.Join(errors.New("corrupt catalog entry"), err)
	}
	return m, nil
}

func (c *Catalog) putLocked(m Meta) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.db.Set(metaKey(m.Name), b)
}
