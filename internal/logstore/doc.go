// Package logstore implements the per-service growable log store.
//
// # Overview
//
// A Store holds fixed-size Records in one contiguous buffer carved out of
// whole pages. When the buffer cannot hold one more record it is replaced by a
// buffer one page larger: the new pages are allocated first, existing records
// are copied byte-for-byte, the old pages are released and only then is the
// new record written. Allocation failure leaves the store untouched.
//
// The store also tracks a flush watermark: records below it have been written
// to the service's file by the persistence writer. The watermark only moves
// forward.
//
//	s := logstore.New("svc1", logstore.NewHeapAllocator(4096))
//	_ = s.Append(logstore.NewRecord("2024-01-01T00:00:00", "boot"))
//	for rec := range s.Select(logstore.InInterval("2024-01-01T00:00:00", "")) {
//	    _ = rec.Text()
//	}
//	from, to := s.UnflushedRange()
//	_ = s.MarkFlushed(to) // after persisting [from, to)
//
// Callers never see raw addresses; every access is by record index under the
// store lock so a growth that relocates the buffer is invisible to them.
package logstore
