// Package persist appends the not-yet-flushed records of a store to its
// service file and advances the store's watermark.
package persist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rzbill/logcache/internal/logstore"
)

// ErrIO is returned when records cannot be made durable.
var ErrIO = errors.New("i/o failure")

// File is the subset of *os.File the writer needs.
type File interface {
	io.Writer
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// Options configures a Writer.
type Options struct {
	Dir     string
	Rotator Rotator
	// Fsync syncs the file after each flush.
	Fsync bool
	// Open overrides how service files are opened.
	Open func(path string) (File, error)
}

// Writer persists stores to <Dir>/<service>.log.
type Writer struct {
	dir     string
	rotator Rotator
	fsync   bool
	open    func(path string) (File, error)
}

// NewWriter returns a Writer for opts.
func NewWriter(opts Options) *Writer {
	w := &Writer{dir: opts.Dir, rotator: opts.Rotator, fsync: opts.Fsync, open: opts.Open}
	if w.rotator == nil {
		w.rotator = NopRotator{}
	}
	if w.open == nil {
		w.open = openAppend
	}
	return w
}

func openAppend(path string) (File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}

// Dir returns the directory holding service files.
func (w *Writer) Dir() string { return w.dir }

// Path returns the file of a service.
func (w *Writer) Path(service string) string {
	return filepath.Join(w.dir, service+".log")
}

// Flush appends the records in the store's unflushed range, one record at a
// time, and returns how many were written. An empty range performs no I/O.
//
// The watermark only covers records that are in the file and, with fsync on,
// synced. If a write fails the partial record is truncated away and the
// watermark is set to the failed index, so the next flush resumes there. If
// the sync fails the whole batch is truncated away and the watermark stays
// put. A partial record left by a failed truncate is cut off by the next
// flush before it appends.
func (w *Writer) Flush(s *logstore.Store) (written int, err error) {
	err = s.WithFlushLock(func() error {
		if s.Closed() {
			return logstore.ErrClosed
		}
		from, to := s.UnflushedRange()
		if from >= to {
			return nil
		}
		recs, err := s.Range(from, to)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(w.dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %v", ErrIO, w.dir, err)
		}
		path := w.Path(s.Name())
		if err := w.rotator.Rotate(path); err != nil {
			return fmt.Errorf("%w: rotate %s: %v", ErrIO, path, err)
		}
		f, err := w.open(path)
		if err != nil {
			return fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
		}
		defer f.Close()
		start, err := alignedSize(f)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrIO, path, err)
		}

		off := start
		buf := make([]byte, 0, logstore.RecordSize)
		for i, rec := range recs {
			buf = rec.AppendBinary(buf[:0])
			if _, werr := f.Write(buf); werr != nil {
				written = i
				if terr := f.Truncate(off); terr != nil {
					werr = errors.Join(werr, fmt.Errorf("truncate: %w", terr))
				}
				// Records before i are whole; a partial tail is repaired by
				// alignedSize on the next flush.
				if w.fsync && i > 0 {
					if serr := f.Sync(); serr != nil {
						written = 0
						return fmt.Errorf("%w: write record %d to %s: %v", ErrIO, from+i, path, errors.Join(werr, undoFlush(f, start, serr)))
					}
				}
				_ = s.MarkFlushed(from + i)
				return fmt.Errorf("%w: write record %d to %s: %v", ErrIO, from+i, path, werr)
			}
			off += logstore.RecordSize
		}
		if w.fsync {
			if serr := f.Sync(); serr != nil {
				return fmt.Errorf("%w: %s: %v", ErrIO, path, undoFlush(f, start, serr))
			}
		}
		written = len(recs)
		return s.MarkFlushed(to)
	})
	return written, err
}

// undoFlush drops everything written since start after a failed sync.
func undoFlush(f File, start int64, serr error) error {
	err := fmt.Errorf("sync: %w", serr)
	if terr := f.Truncate(start); terr != nil {
		err = errors.Join(err, fmt.Errorf("truncate: %w", terr))
	}
	return err
}

// alignedSize returns the file size rounded down to whole records, first
// truncating any partial trailing record.
func alignedSize(f File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}
	size := info.Size()
	if tail := size % logstore.RecordSize; tail != 0 {
		size -= tail
		if err := f.Truncate(size); err != nil {
			return 0, fmt.Errorf("truncate partial record: %w", err)
		}
	}
	return size, nil
}

// ReadFile decodes every record of a service file.
func ReadFile(path string) ([]logstore.Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(b)%logstore.RecordSize != 0 {
		return nil, fmt.Errorf("%s: size %d is not a multiple of %d", path, len(b), logstore.RecordSize)
	}
	out := make([]logstore.Record, 0, len(b)/logstore.RecordSize)
	for off := 0; off < len(b); off += logstore.RecordSize {
		rec, _ := logstore.DecodeRecord(b[off : off+logstore.RecordSize])
		out = append(out, rec)
	}
	return out, nil
}
