package aprs

import "time"

// Limiter is a token bucket that refills at each new wall-clock second.
// Overflowing sends are dropped, never queued.
type Limiter struct {
	perSecond int
	second    int64
	used      int
}

// NewLimiter returns a bucket allowing perSecond sends per wall-clock second.
func NewLimiter(perSecond int) *Limiter {
	return &Limiter{perSecond: perSecond}
}

// Allow reports whether one more send may go out during now's wall-clock
// second, consuming a token if so.
func (l *Limiter) Allow(now time.Time) bool {
	sec := now.Unix()
	if sec != l.second {
		l.second = sec
		l.used = 0
	}
	if l.used >= l.perSecond {
		return false
	}
	l.used++
	return true
}
