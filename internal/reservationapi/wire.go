package reservationapi

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"tablebook/internal/models"
)

// Accepted timestamp layouts, zone-less ones are read in the client location.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

type wireReservation struct {
	ID                json.RawMessage `json:"id"`
	ContactName       string          `json:"contactName"`
	ContactPhone      string          `json:"contactPhone"`
	ContactEmail      string          `json:"contactEmail"`
	Guests            int             `json:"guests"`
	ReserveTime       string          `json:"reserveTime"`
	Status            int             `json:"status"`
	OtherRequirements *string         `json:"otherRequirements"`
	CreateTime        string          `json:"createTime"`
}

// toModel never fails: an unusable id or reserveTime yields the zero value
// and the record is rejected later at the merge boundary.
func (w *wireReservation) toModel(loc *time.Location) models.Reservation {
	r := models.Reservation{
		ID:           parseID(w.ID),
		ContactName:  w.ContactName,
		ContactPhone: w.ContactPhone,
		ContactEmail: w.ContactEmail,
		Guests:       w.Guests,
		ReserveTime:  parseTime(w.ReserveTime, loc),
		Status:       models.ReservationStatus(w.Status),
		CreateTime:   parseTime(w.CreateTime, loc),
	}
	if w.OtherRequirements != nil {
		r.OtherRequirements = *w.OtherRequirements
	}
	return r
}

// parseID accepts string and numeric ids.
func parseID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func parseTime(s string, loc *time.Location) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}
