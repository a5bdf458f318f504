package logstore

import (
	"errors"
	"fmt"
	"iter"
	"sync"
)

// ErrClosed is returned by every operation on a destroyed store.
var ErrClosed = errors.New("store destroyed")

// Stats is a point-in-time view of a store.
type Stats struct {
	Records     int `json:"records"`
	Flushed     int `json:"flushed"`
	Pages       int `json:"pages"`
	MemoryBytes int `json:"memoryBytes"`
	Subscribers int `json:"subscribers"`
}

// Store is the growable record array of one service.
type Store struct {
	name  string
	alloc Allocator

	mu          sync.RWMutex
	buf         []byte
	pages       int
	count       int
	flushed     int
	subscribers int
	sealed      bool
	closed      bool

	// flushMu serialises flushes so a record is never written twice.
	flushMu sync.Mutex
}

// New returns an empty store. No pages are allocated until the first append.
func New(name string, alloc Allocator) *Store {
	return &Store{name: name, alloc: alloc}
}

// Name returns the service name.
func (s *Store) Name() string { return s.name }

// Append adds rec at index Count(), growing the buffer by a page first if it
// is full. On allocation failure the store is unchanged.
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.sealed {
		return ErrClosed
	}
	pageSize := s.alloc.PageSize()
	need := (s.count + 1) * RecordSize
	if need > s.pages*pageSize {
		pages := s.pages + 1
		for pages*pageSize < need {
			pages++
		}
		buf, err := s.alloc.Alloc(pages)
		if err != nil {
			if !errors.Is(err, ErrAllocation) {
				err = fmt.Errorf("%w: %v", ErrAllocation, err)
			}
			return err
		}
		copy(buf, s.buf[:s.count*RecordSize])
		old := s.buf
		s.buf, s.pages = buf, pages
		// The record lands in the new buffer either way; the allocator
		// reports a failed release.
		_ = s.alloc.Free(old)
	}
	off := s.count * RecordSize
	rec.encodeInto(s.buf[off : off+RecordSize])
	s.count++
	return nil
}

// Count returns the number of appended records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// UnflushedRange returns [flushed, count).
func (s *Store) UnflushedRange() (from, to int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flushed, s.count
}

func (s *Store) recordLocked(i int) Record {
	r, _ := DecodeRecord(s.buf[i*RecordSize : (i+1)*RecordSize])
	return r
}

// Range copies the records in [from, to).
func (s *Store) Range(from, to int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if from < 0 || to > s.count || from > to {
		return nil, fmt.Errorf("record range [%d,%d) out of bounds [0,%d)", from, to, s.count)
	}
	out := make([]Record, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, s.recordLocked(i))
	}
	return out, nil
}

// Select lazily yields the records matching pred in append order. The set of
// candidate records is fixed when iteration starts; records appended during
// iteration are not visited. The read lock is taken per record, never across
// a yield, so a slow consumer does not block appends.
func (s *Store) Select(pred func(Record) bool) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		n := s.Count()
		for i := 0; i < n; i++ {
			s.mu.RLock()
			if s.closed {
				s.mu.RUnlock()
				return
			}
			r := s.recordLocked(i)
			s.mu.RUnlock()
			if pred != nil && !pred(r) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// MarkFlushed advances the watermark to n. Lower values are ignored and n is
// clamped to Count().
func (s *Store) MarkFlushed(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if n > s.count {
		n = s.count
	}
	if n > s.flushed {
		s.flushed = n
	}
	return nil
}

// WithFlushLock runs fn while holding the store's flush lock. It does not hold
// the data lock, so appends proceed while fn does I/O.
func (s *Store) WithFlushLock(fn func() error) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	return fn()
}

// AddSubscriber records a subscribing session.
func (s *Store) AddSubscriber() {
	s.mu.Lock()
	s.subscribers++
	s.mu.Unlock()
}

// RemoveSubscriber releases a subscribing session.
func (s *Store) RemoveSubscriber() {
	s.mu.Lock()
	if s.subscribers > 0 {
		s.subscribers--
	}
	s.mu.Unlock()
}

// Stats returns counters and the memory held by the store.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Records:     s.count,
		Flushed:     s.flushed,
		Pages:       s.pages,
		MemoryBytes: s.pages * s.alloc.PageSize(),
		Subscribers: s.subscribers,
	}
}

// Closed reports whether Destroy has run.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Seal rejects further appends with ErrClosed while reads and flushes
// continue. It is used to drain a store before Destroy.
func (s *Store) Seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

// Unseal reverses Seal.
func (s *Store) Unseal() {
	s.mu.Lock()
	s.sealed = false
	s.mu.Unlock()
}

// Destroy releases the backing pages. The caller must have flushed first.
// Destroy waits for an in-flight flush to finish.
func (s *Store) Destroy() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	err := s.alloc.Free(s.buf)
	s.buf, s.pages = nil, 0
	return err
}
