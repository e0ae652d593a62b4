package dataset

import "time"

// HolidayCovariate is the column name of the calendar feature.
const HolidayCovariate = "is_holiday"

// fixedHolidays are (month, day) pairs observed every year.
var fixedHolidays = map[[2]int]bool{
	{1, 1}:   true, // New Year's Day
	{5, 1}:   true, // Labour Day
	{12, 25}: true, // Christmas Day
	{12, 31}: true, // New Year's Eve
}

// AddHolidayFeature augments every record with an is_holiday covariate
// (weekends plus the fixed-date holidays). The covariate travels with
// the record into the trainable snapshot.
func AddHolidayFeature(ds *Dataset) {
	for i := range ds.Records {
		rec := &ds.Records[i]
		if rec.Covariates == nil {
			rec.Covariates = make(map[string]float64, 1)
		}
		if isHoliday(rec.Timestamp) {
			rec.Covariates[HolidayCovariate] = 1
		} else {
			rec.Covariates[HolidayCovariate] = 0
		}
	}
}

func isHoliday(ts time.Time) bool {
	switch ts.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return fixedHolidays[[2]int{int(ts.Month()), ts.Day()}]
}
