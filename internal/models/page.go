package models

import "time"

// PageQuery is one request against the paged reservation list.
type PageQuery struct {
	Page     int
	PageSize int
	Search   string
	Date     *time.Time
	// Fresh asks the fetcher to skip any response cache.
	Fresh bool
}

// Page is one server response slice.
type Page struct {
	Records []Reservation
	Total   int
}
