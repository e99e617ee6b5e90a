package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tablebook/internal/feed"
	"tablebook/internal/models"
)

func TestWriteFeed(t *testing.T) {
	records := []models.Reservation{
		{ID: "1", ContactName: "John Smith", Guests: 4, ReserveTime: time.Date(2025, 1, 10, 19, 30, 0, 0, time.UTC), Status: models.StatusPending},
		{ID: "2", ContactName: "Ann", Guests: 2, ReserveTime: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC), Status: models.StatusConfirmed},
		{ID: "3", ContactName: "Bob", Guests: 3, ReserveTime: time.Date(2025, 1, 11, 9, 0, 0, 0, time.UTC), Status: models.StatusCancelled, OtherRequirements: "high chair"},
	}
	items := feed.Flatten(records, time.UTC)
	stats := models.Stats{TodayCount: 2, PendingCount: 1, ConfirmedCount: 1, TotalGuestsToday: 6}

	w := NewExcelizeWriter()
	defer w.Close()
	require.NoError(t, WriteFeed(w, items, stats, time.UTC))

	var buf bytes.Buffer
	require.NoError(t, w.Save(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Reservations", "Summary"}, f.GetSheetList())

	rows, err := f.GetRows("Reservations")
	require.NoError(t, err)
	require.Len(t, rows, 1+len(items))

	assert.Equal(t, feedColumns, rows[0])
	assert.Equal(t, []string{"2025-01-10", "2 reservations", "1 pending"}, rows[1])
	assert.Equal(t, []string{"2025-01-10", "12:00", "Ann", "", "", "2", "confirmed", "", "2"}, rows[2])
	assert.Equal(t, []string{"2025-01-10", "19:30", "John Smith", "", "", "4", "pending", "", "1"}, rows[3])
	assert.Equal(t, []string{"2025-01-11", "1 reservations", "0 pending"}, rows[4])
	assert.Equal(t, "high chair", rows[5][7])

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Metric", "Value"},
		{"Today", "2"},
		{"Pending", "1"},
		{"Confirmed", "1"},
		{"Guests today", "6"},
	}, summary)
}

func TestExcelizeWriter_NoSheet(t *testing.T) {
	w := NewExcelizeWriter()
	defer w.Close()
	assert.Error(t, w.WriteRow([]interface{}{"x"}))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "reservations_2025-01-10.xlsx", Filename(time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)))
}
