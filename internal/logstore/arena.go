package logstore

import (
	"errors"
	"fmt"
	"os"
)

// ErrAllocation is returned when backing pages cannot be obtained.
var ErrAllocation = errors.New("allocation failure")

// Allocator hands out zeroed, page-granular backing buffers.
type Allocator interface {
	// Alloc returns a zeroed buffer of exactly pages*PageSize() bytes.
	Alloc(pages int) ([]byte, error)
	// Free releases a buffer previously returned by Alloc.
	Free(buf []byte) error
	PageSize() int
}

// OSPageSize reports the operating system page size.
func OSPageSize() int { return os.Getpagesize() }

// HeapAllocator allocates pages from the Go heap.
type HeapAllocator struct {
	pageSize int
	// MaxPages caps a single allocation; 0 means unlimited.
	MaxPages int
}

// NewHeapAllocator returns a heap allocator; pageSize <= 0 uses the OS page size.
func NewHeapAllocator(pageSize int) *HeapAllocator {
	if pageSize <= 0 {
		pageSize = OSPageSize()
	}
	return &HeapAllocator{pageSize: pageSize}
}

func (a *HeapAllocator) Alloc(pages int) ([]byte, error) {
	if pages <= 0 {
		return nil, fmt.Errorf("%w: invalid page count %d", ErrAllocation, pages)
	}
	if a.MaxPages > 0 && pages > a.MaxPages {
		return nil, fmt.Errorf("%w: %d pages exceeds limit %d", ErrAllocation, pages, a.MaxPages)
	}
	return make([]byte, pages*a.pageSize), nil
}

func (a *HeapAllocator) Free([]byte) error { return nil }
func (a *HeapAllocator) PageSize() int     { return a.pageSize }

// NewAllocator returns the mmap allocator when useMmap is set and the platform
// supports it, otherwise a heap allocator.
func NewAllocator(useMmap bool, pageSize int) Allocator {
	if useMmap {
		if a, ok := newMmapAllocator(pageSize); ok {
			return a
		}
	}
	return NewHeapAllocator(pageSize)
}
