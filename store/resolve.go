package store

import "time"

// Resolve maps a collection date to its partition key. Daily partitions
// carry the date itself; monthly partitions fold every date of a month
// onto the month's first day, so daily runs accumulate into one
// partition per month. Pure function of its inputs.
func Resolve(prefix string, day time.Time, monthly bool) string {
	if monthly {
		day = time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	}
	return prefix + day.Format("20060102")
}
