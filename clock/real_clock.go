package clock

import "time"

// RealClock is the production Clock: wall time, used to stamp every
// nsal.Stat atime/mtime/ctime triple (spec §3.3) outside of tests.
type RealClock struct{}

// Now returns the current local time, the source fs.now() decomposes into
// an nsal.Timespec for stat writes.
func (RealClock) Now() time.Time {
	return time.Now()
}

// After notifies on the returned channel once d has elapsed.
func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
