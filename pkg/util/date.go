package util

import (
	"time"
)

// AlignFromTo rounds the time range to bucket boundaries for the resolution.
func AlignFromTo(from, to time.Time, res string) (time.Time, time.Time) {
	switch res {
	case "15m":
		d := 15 * time.Minute
		from = from.Truncate(d)
		to = to.Truncate(d)
	case "1d":
		d := 24 * time.Hour
		from = from.Truncate(d)
		to = to.Truncate(d)
	default:
		from = from.Truncate(time.Hour)
		to = to.Truncate(time.Hour)
	}
	return from, to
}
