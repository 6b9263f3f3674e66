package domain

import "time"

// Loan accounting works in whole calendar days; all stored dates are
// normalized to midnight UTC so date comparisons ignore the time component.

func ToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dateAfter(a, b time.Time) bool {
	return ToDate(a).After(ToDate(b))
}

func dateBefore(a, b time.Time) bool {
	return ToDate(a).Before(ToDate(b))
}

func dateEqual(a, b time.Time) bool {
	return ToDate(a).Equal(ToDate(b))
}

func dateOnOrBefore(a, b time.Time) bool {
	return !dateAfter(a, b)
}
