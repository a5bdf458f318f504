package id

import (
	"math"
	"strconv"
	"sync"
	"time"
)

// ID names one session: the millisecond it was issued and a sequence that
// orders IDs issued within the same millisecond.
type ID struct {
	Ms  int64
	Seq uint32
}

// String renders the ID as "<ms base36>-<seq base36>".
func (i ID) String() string {
	return strconv.FormatInt(i.Ms, 36) + "-" + strconv.FormatUint(uint64(i.Seq), 36)
}

// Time returns the issue time.
func (i ID) Time() time.Time { return time.UnixMilli(i.Ms) }

// Less orders IDs by issue order.
func (i ID) Less(o ID) bool {
	if i.Ms != o.Ms {
		return i.Ms < o.Ms
	}
	return i.Seq < o.Seq
}

// Generator issues strictly increasing IDs. It is safe for concurrent use.
type Generator struct {
	now func() time.Time

	mu     sync.Mutex
	lastMs int64
	seq    uint32
}

// NewGenerator returns a Generator on the wall clock.
func NewGenerator() *Generator { return &Generator{now: time.Now} }

// Next returns a new ID. A clock that moves backwards is pinned to the last
// millisecond seen; an exhausted sequence borrows the next millisecond.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	switch {
	case ms > g.lastMs:
		g.lastMs, g.seq = ms, 0
	case g.seq == math.MaxUint32:
		g.lastMs++
		g.seq = 0
	default:
		g.seq++
	}
	return ID{Ms: g.lastMs, Seq: g.seq}
}
