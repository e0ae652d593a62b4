package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddHolidayFeature(t *testing.T) {
	ds := &Dataset{Records: []Record{
		{Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},   // New Year's Day (Wednesday)
		{Timestamp: time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)},   // Saturday
		{Timestamp: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)},   // Sunday
		{Timestamp: time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)},   // Tuesday
		{Timestamp: time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)}, // Christmas
	}}

	AddHolidayFeature(ds)

	want := []float64{1, 1, 1, 0, 1}
	for i, rec := range ds.Records {
		assert.Equal(t, want[i], rec.Covariates[HolidayCovariate], "record %d (%s)", i, rec.Timestamp.Format("2006-01-02"))
	}
}
