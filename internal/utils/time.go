package utils

import (
	"time"

	_ "time/tzdata"

	"github.com/go-universal/jalaali"
)

const (
	CalendarGregorian = "gregorian"
	CalendarJalali    = "jalali"
)

// TehranLoc returns the Tehran time zone location.
func TehranLoc() *time.Location {
	return jalaali.TehranTz()
}

// JalaliDateTime returns a string like "1404/10/09 - 16:40" in loc.
func JalaliDateTime(t time.Time, loc *time.Location) string {
	j := jalaali.New(t.In(loc))
	return j.Format("2006/01/02 - 15:04")
}

// FormatTimestamp renders t for display in the chosen calendar. A nil loc
// means Tehran for the Jalali calendar and UTC otherwise.
func FormatTimestamp(t time.Time, calendar string, loc *time.Location) string {
	if calendar == CalendarJalali {
		if loc == nil {
			loc = TehranLoc()
		}
		return JalaliDateTime(t, loc)
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02 15:04:05 MST")
}
