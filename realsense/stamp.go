package realsense

import (
	"sync"
	"time"
)

// Stamp tags a captured image with a strictly increasing per-stream
// sequence number and the capture time. Ordering is defined by Count; Time
// is informational.
type Stamp struct {
	Count uint64
	Time  time.Time
}

// After reports whether s was taken after other on the same stream.
func (s Stamp) After(other Stamp) bool {
	return s.Count > other.Count
}

// stampSource hands out stamps for one stream. Each stream (color, depth)
// owns its own source; a successful capture advances only its stream.
type stampSource struct {
	mu   sync.Mutex
	last Stamp
}

func (src *stampSource) update(t time.Time) Stamp {
	src.mu.Lock()
	defer src.mu.Unlock()
	if t.IsZero() {
		t = time.Now()
	}
	src.last = Stamp{Count: src.last.Count + 1, Time: t}
	return src.last
}

func (src *stampSource) current() Stamp {
	src.mu.Lock()
	defer src.mu.Unlock()
	return src.last
}
