//go:build !unix

package logstore

func newMmapAllocator(int) (Allocator, bool) { return nil, false }
