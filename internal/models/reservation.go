package models

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for grouping keys and the
// date filter on the wire.
const DateLayout = "2006-01-02"

var (
	ErrMissingID          = errors.New("reservation has no id")
	ErrMissingReserveTime = errors.New("reservation has no reserve time")
	ErrUnknownStatus      = errors.New("reservation has unknown status")
	ErrInvalidGuests      = errors.New("reservation guests must be positive")
)

// Reservation is a single table booking as returned by the reservation list endpoint.
// Records are immutable once loaded, except for Status.
type Reservation struct {
	ID                string            `json:"id"`
	ContactName       string            `json:"contactName"`
	ContactPhone      string            `json:"contactPhone"`
	ContactEmail      string            `json:"contactEmail"`
	Guests            int               `json:"guests"`
	ReserveTime       time.Time         `json:"reserveTime"`
	Status            ReservationStatus `json:"status"`
	OtherRequirements string            `json:"otherRequirements,omitempty"`
	CreateTime        time.Time         `json:"createTime"`
}

// Validate reports why a record cannot be placed into a date group.
func (r *Reservation) Validate() error {
	if r.ID == "" {
		return ErrMissingID
	}
	if r.ReserveTime.IsZero() {
		return fmt.Errorf("reservation %s: %w", r.ID, ErrMissingReserveTime)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("reservation %s: %w (%d)", r.ID, ErrUnknownStatus, int(r.Status))
	}
	if r.Guests <= 0 {
		return fmt.Errorf("reservation %s: %w", r.ID, ErrInvalidGuests)
	}
	return nil
}

// DateKey returns the calendar day of the reservation in loc.
func (r *Reservation) DateKey(loc *time.Location) string {
	return DateKeyOf(r.ReserveTime, loc)
}

// DateKeyOf formats t as a calendar day in loc (time.Local when nil).
func DateKeyOf(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}

// FilterCriteria narrows the paged query.
type FilterCriteria struct {
	SearchQuery  string
	SelectedDate *time.Time
}

// FilterPatch is a shallow update of FilterCriteria. Nil fields are left unchanged.
type FilterPatch struct {
	SearchQuery  *string
	SelectedDate *time.Time
	ClearDate    bool
}

// Apply returns f with the patch merged in.
func (p FilterPatch) Apply(f FilterCriteria) FilterCriteria {
	if p.SearchQuery != nil {
		f.SearchQuery = *p.SearchQuery
	}
	if p.ClearDate {
		f.SelectedDate = nil
	} else if p.SelectedDate != nil {
		d := *p.SelectedDate
		f.SelectedDate = &d
	}
	return f
}

// SearchPatch changes only the search query.
func SearchPatch(q string) FilterPatch {
	return FilterPatch{SearchQuery: &q}
}

// DatePatch changes only the selected date.
func DatePatch(d time.Time) FilterPatch {
	return FilterPatch{SelectedDate: &d}
}

// PageState tracks pagination of the feed.
type PageState struct {
	CurrentPage int
	PageSize    int
	Total       int
	HasNextPage bool
	IsLoading   bool
}

// Stats are summary counters over the loaded records only. Reservations on
// pages that have not been fetched yet are not counted.
type Stats struct {
	TodayCount       int `json:"todayCount"`
	PendingCount     int `json:"pendingCount"`
	ConfirmedCount   int `json:"confirmedCount"`
	TotalGuestsToday int `json:"totalGuestsToday"`
}
