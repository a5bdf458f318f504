//go:build unix

package logstore

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MmapAllocator maps anonymous shared pages, so a buffer stays valid across
// fork and is never moved by the Go garbage collector.
type MmapAllocator struct {
	pageSize int
}

func newMmapAllocator(pageSize int) (Allocator, bool) {
	if pageSize <= 0 {
		pageSize = OSPageSize()
	}
	return &MmapAllocator{pageSize: pageSize}, true
}

func (a *MmapAllocator) Alloc(pages int) ([]byte, error) {
	if pages <= 0 {
		return nil, fmt.Errorf("%w: invalid page count %d", ErrAllocation, pages)
	}
	buf, err := unix.Mmap(-1, 0, pages*a.pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %d pages: %v", ErrAllocation, pages, err)
	}
	return buf, nil
}

func (a *MmapAllocator) Free(buf []byte) error {
	if buf == nil {
		return nil
	}
	return unix.Munmap(buf)
}

func (a *MmapAllocator) PageSize() int { return a.pageSize }
