// Package jalali enumerates the calendar weeks of a Jalali year for the
// dashboard's date-range picker. A week runs Saturday through Friday; the
// first and last weeks of a year are usually partial.
package jalali

import (
	"fmt"
	"time"

	ptime "github.com/yaa110/go-persian-calendar"
)

// WeekOption is one selectable week. Dates are Jalali YYYY/MM/DD strings,
// the format the transaction upstream expects.
type WeekOption struct {
	Label    string `json:"label"`
	FromDate string `json:"fromDate"`
	ToDate   string `json:"toDate"`
}

// CurrentYear returns the Jalali year of the present moment in Iran's
// timezone.
func CurrentYear() int {
	return ptime.New(time.Now().In(ptime.Iran())).Year()
}

// WeeksOfYear lists every week of a Jalali year in chronological order.
// Week 1 starts on Farvardin 1 and ends on the first Friday; the final week
// ends on the last day of the year whatever weekday that is.
func WeeksOfYear(year int) []WeekOption {
	loc := ptime.Iran()
	// Noon anchors keep day arithmetic clear of DST transitions.
	day := ptime.Date(year, ptime.Farvardin, 1, 12, 0, 0, 0, loc).Time()
	lastDay := ptime.Date(year+1, ptime.Farvardin, 1, 12, 0, 0, 0, loc).Time().AddDate(0, 0, -1)

	var weeks []WeekOption
	weekStart := day
	for !day.After(lastDay) {
		if ptime.New(day).Weekday() == ptime.Jomeh || day.Equal(lastDay) {
			n := len(weeks) + 1
			from := formatDate(weekStart)
			to := formatDate(day)
			weeks = append(weeks, WeekOption{
				Label:    fmt.Sprintf("هفته %d (%s تا %s)", n, from, to),
				FromDate: from,
				ToDate:   to,
			})
			weekStart = day.AddDate(0, 0, 1)
		}
		day = day.AddDate(0, 0, 1)
	}
	return weeks
}

func formatDate(t time.Time) string {
	pt := ptime.New(t)
	return fmt.Sprintf("%04d/%02d/%02d", pt.Year(), int(pt.Month()), pt.Day())
}
