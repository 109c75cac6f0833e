package xdpsock

import "time"

// clockBase anchors defaultClock; time.Since reads the monotonic clock.
var clockBase = time.Now()

func defaultClock() int64 {
	return int64(time.Since(clockBase))
}
