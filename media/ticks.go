package media

import "time"

// TicksPerSecond is the number of 100ns server ticks in one second.
const TicksPerSecond = int64(time.Second / tick)

const tick = 100 * time.Nanosecond

// Ticks converts a duration into server ticks.
func Ticks(d time.Duration) int64 {
	return int64(d / tick)
}

// FromTicks converts server ticks into a duration.
func FromTicks(t int64) time.Duration {
	return time.Duration(t) * tick
}
