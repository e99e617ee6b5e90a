package feed

import (
	"time"

	"tablebook/internal/models"
)

// ComputeStats derives the summary counters from the loaded records.
// Records on pages not fetched yet are not counted; callers showing these
// numbers must present them as "loaded so far".
func ComputeStats(records []models.Reservation, now time.Time, loc *time.Location) models.Stats {
	today := models.DateKeyOf(now, loc)

	var st models.Stats
	for i := range records {
		r := &records[i]
		switch r.Status {
		case models.StatusPending:
			st.PendingCount++
		case models.StatusConfirmed:
			st.ConfirmedCount++
		}
		if r.DateKey(loc) == today {
			st.TodayCount++
			st.TotalGuestsToday += r.Guests
		}
	}
	return st
}
