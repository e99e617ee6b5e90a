// Package feed turns a server-paginated reservation list into a stable,
// date-grouped in-memory feed for one screen session.
package feed

import (
	"sort"
	"time"

	"tablebook/internal/models"
)

// DateGroup holds the loaded reservations of one calendar day.
type DateGroup struct {
	Date    string // YYYY-MM-DD in the feed's location
	Records []models.Reservation
}

// SkippedRecord is an incoming record rejected at the merge boundary.
type SkippedRecord struct {
	Record models.Reservation
	Err    error
}

// MergeResult is the outcome of MergeByDate.
type MergeResult struct {
	Records []models.Reservation
	Skipped []SkippedRecord
}

// MergeByDate combines an incoming page into the existing dataset.
//
// Records are keyed by calendar day of ReserveTime in loc. An incoming record
// replaces an existing one with the same ID (even when it moved to another
// day), new IDs are added. The result is ordered by day, then ReserveTime,
// then ID, so merging the same page twice yields the same dataset.
// Incoming records that fail validation are skipped and reported.
func MergeByDate(existing, incoming []models.Reservation, loc *time.Location) MergeResult {
	var res MergeResult

	byID := make(map[string]models.Reservation, len(existing)+len(incoming))
	for _, r := range existing {
		byID[r.ID] = r
	}
	for _, r := range incoming {
		if err := r.Validate(); err != nil {
			res.Skipped = append(res.Skipped, SkippedRecord{Record: r, Err: err})
			continue
		}
		byID[r.ID] = r
	}

	groups := make(map[string][]models.Reservation)
	for _, r := range byID {
		key := r.DateKey(loc)
		groups[key] = append(groups[key], r)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res.Records = make([]models.Reservation, 0, len(byID))
	for _, k := range keys {
		recs := groups[k]
		sortWithinDay(recs)
		res.Records = append(res.Records, recs...)
	}
	return res
}

func sortWithinDay(recs []models.Reservation) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].ReserveTime.Equal(recs[j].ReserveTime) {
			return recs[i].ReserveTime.Before(recs[j].ReserveTime)
		}
		return recs[i].ID < recs[j].ID
	})
}

// GroupByDate splits an ordered dataset into consecutive day groups.
// The dataset is expected to be MergeByDate output.
func GroupByDate(records []models.Reservation, loc *time.Location) []DateGroup {
	var groups []DateGroup
	for _, r := range records {
		key := r.DateKey(loc)
		if n := len(groups); n > 0 && groups[n-1].Date == key {
			groups[n-1].Records = append(groups[n-1].Records, r)
			continue
		}
		groups = append(groups, DateGroup{Date: key, Records: []models.Reservation{r}})
	}
	return groups
}
