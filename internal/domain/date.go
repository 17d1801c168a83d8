package domain

import "time"

const DateLayout = "2006-01-02"

// Date strips the clock part of t, keeping its calendar day in t's location,
// and returns that day as midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate reads a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// AgeOn returns the number of whole years between birth and day. Like a
// calendar difference it is symmetric, so a birth date after the visit
// still yields a non-negative age.
func AgeOn(day, birth time.Time) int {
	day, birth = Date(day), Date(birth)
	if birth.After(day) {
		day, birth = birth, day
	}
	age := day.Year() - birth.Year()
	if day.Month() < birth.Month() || (day.Month() == birth.Month() && day.Day() < birth.Day()) {
		age--
	}
	return age
}
