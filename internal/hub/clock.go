package hub

import "time"

// SystemClock implements Clock against the real wall clock.
type SystemClock struct{}

func (SystemClock) NowMillis() int64 {
	return time.Now().UnixMilli()
}
