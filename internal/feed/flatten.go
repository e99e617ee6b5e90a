package feed

import (
	"time"

	"tablebook/internal/models"
)

// FlatItem is one entry of the rendered list: either a Header or a Row.
type FlatItem interface {
	// Key is stable across renders: header-<date> or reservation-<id>.
	Key() string
	flatItem()
}

// Header opens a date group.
type Header struct {
	Date         string
	Count        int
	PendingCount int
}

// Row is one reservation under the preceding Header.
type Row struct {
	Reservation models.Reservation
}

func (h Header) Key() string { return "header-" + h.Date }
func (r Row) Key() string    { return "reservation-" + r.Reservation.ID }

func (Header) flatItem() {}
func (Row) flatItem()    {}

// Flatten projects the dataset into headers and rows, one Header per day in
// ascending order followed by that day's rows.
func Flatten(records []models.Reservation, loc *time.Location) []FlatItem {
	groups := GroupByDate(records, loc)
	items := make([]FlatItem, 0, len(records)+len(groups))
	for _, g := range groups {
		h := Header{Date: g.Date, Count: len(g.Records)}
		for i := range g.Records {
			if g.Records[i].Status == models.StatusPending {
				h.PendingCount++
			}
		}
		items = append(items, h)
		for _, r := range g.Records {
			items = append(items, Row{Reservation: r})
		}
	}
	return items
}
