// Package timeline builds the bucket boundaries used to chart check-run
// metrics over a requested time range. Granularity adapts to the range
// length: daily points for short ranges, weekly for medium ones, and
// calendar month starts for anything longer. The returned boundaries always
// cover [from, to] exactly.
package timeline

import "time"

const (
	// daysPerWeek is the weekly bucket stride.
	daysPerWeek = 7

	// maxDailyDays is the exclusive range length limit for daily buckets.
	maxDailyDays = 5 * daysPerWeek

	// maxWeeklyDays is the exclusive range length limit for weekly buckets.
	maxWeeklyDays = 5 * 30

	hoursPerDay = 24
)

// Build returns the boundary timestamps for charting the range [from, to].
// len(result) is the bucket count plus one; callers treat consecutive pairs
// as half-open buckets. from must not be after to.
func Build(from, to time.Time) []time.Time {
	days := int(to.Sub(from).Hours() / hoursPerDay)

	switch {
	case days < maxDailyDays:
		return daily(from, to, days)
	case days < maxWeeklyDays:
		return weekly(from, to, days)
	default:
		return monthly(from, to)
	}
}

// daily returns one boundary per day, extended so the range end is always
// covered. A zero-length range still yields one day-long bucket.
func daily(from, to time.Time, days int) []time.Time {
	boundaries := make([]time.Time, days+1)
	for i := range boundaries {
		boundaries[i] = from.AddDate(0, 0, i)
	}

	if boundaries[len(boundaries)-1].Before(to) {
		boundaries = append(boundaries, to)
	}

	if len(boundaries) == 1 {
		boundaries = append(boundaries, from.AddDate(0, 0, 1))
	}

	return boundaries
}

// weekly returns one boundary per week, with the final boundary clamped to
// the end of the range.
func weekly(from, to time.Time, days int) []time.Time {
	var boundaries []time.Time

	for offset := 0; offset < days+daysPerWeek-1; offset += daysPerWeek {
		boundaries = append(boundaries, from.AddDate(0, 0, offset))
	}

	boundaries[len(boundaries)-1] = to

	return boundaries
}

// monthly returns boundaries at every month start inside the range, extended
// with the range endpoints when they do not fall on month starts.
func monthly(from, to time.Time) []time.Time {
	var boundaries []time.Time

	cursor := time.Date(from.Year(), from.Month(), 1, from.Hour(), from.Minute(), from.Second(), 0, from.Location())
	if cursor.Before(from) {
		cursor = cursor.AddDate(0, 1, 0)
	}

	for !cursor.After(to) {
		boundaries = append(boundaries, cursor)
		cursor = cursor.AddDate(0, 1, 0)
	}

	if len(boundaries) == 0 || boundaries[0].After(from) {
		boundaries = append([]time.Time{from}, boundaries...)
	}

	if boundaries[len(boundaries)-1].Before(to) {
		boundaries = append(boundaries, to)
	}

	return boundaries
}
