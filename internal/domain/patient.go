package domain

import "time"

// AgeOn returns the age in whole years at the given instant.
func AgeOn(birth time.Time, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}
