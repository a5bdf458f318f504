package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// Rotator is consulted before every flush of a service file.
type Rotator interface {
	Rotate(path string) error
}

// NopRotator never rotates.
type NopRotator struct{}

func (NopRotator) Rotate(string) error { return nil }

// SizeRotator moves a service file aside once it reaches MaxBytes or has not
// been written for MaxAge. Zero disables the respective trigger.
type SizeRotator struct {
	MaxBytes int64
	MaxAge   time.Duration
	// Now is swapped in tests.
	Now func() time.Time
}

// Rotate renames path to path.<yyyymmddThhmmss> when a trigger fires.
func (r SizeRotator) Rotate(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	bySize := r.MaxBytes > 0 && info.Size() >= r.MaxBytes
	byAge := r.MaxAge > 0 && now().Sub(info.ModTime()) >= r.MaxAge
	if !bySize && !byAge {
		return nil
	}
	base := path + "." + now().UTC().Format("20060102T150405")
	target := base
	for i := 1; ; i++ {
		if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
			break
		}
		target = fmt.Sprintf("%s.%d", base, i)
	}
	return os.Rename(path, target)
}
