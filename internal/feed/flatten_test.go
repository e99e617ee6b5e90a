package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebook/internal/models"
)

func TestFlatten_SingleDay(t *testing.T) {
	page := []models.Reservation{
		res("1", at(10, 18, 0), models.StatusPending, 2),
		res("2", at(10, 19, 0), models.StatusConfirmed, 4),
		res("3", at(10, 20, 0), models.StatusPending, 3),
	}
	dataset := MergeByDate(nil, page, time.UTC).Records

	items := Flatten(dataset, time.UTC)

	require.Len(t, items, 4)
	assert.Equal(t, Header{Date: "2025-01-10", Count: 3, PendingCount: 2}, items[0])
	for i, id := range []string{"1", "2", "3"} {
		row, ok := items[i+1].(Row)
		require.True(t, ok)
		assert.Equal(t, id, row.Reservation.ID)
	}
}

func TestFlatten_Keys(t *testing.T) {
	items := Flatten([]models.Reservation{res("42", at(10, 18, 0), models.StatusPending, 2)}, time.UTC)

	require.Len(t, items, 2)
	assert.Equal(t, "header-2025-01-10", items[0].Key())
	assert.Equal(t, "reservation-42", items[1].Key())
}

func TestFlatten_Empty(t *testing.T) {
	assert.Empty(t, Flatten(nil, time.UTC))
}

func TestFlatten_HeaderCountsMatchRows(t *testing.T) {
	statuses := []models.ReservationStatus{models.StatusPending, models.StatusConfirmed, models.StatusCancelled}
	var page []models.Reservation
	for i := 0; i < 30; i++ {
		id := string(rune('a'+i%26)) + string(rune('0'+i/26))
		page = append(page, res(id, at(1+i%4, 10+i%9, 0), statuses[i%3], 1+i%5))
	}
	dataset := MergeByDate(nil, page, time.UTC).Records

	items := Flatten(dataset, time.UTC)

	var (
		current *Header
		rows    int
		pending int
		headers []string
	)
	check := func() {
		if current == nil {
			return
		}
		assert.Equal(t, current.Count, rows, "count for %s", current.Date)
		assert.Equal(t, current.PendingCount, pending, "pending for %s", current.Date)
	}
	for _, it := range items {
		switch v := it.(type) {
		case Header:
			check()
			h := v
			current, rows, pending = &h, 0, 0
			headers = append(headers, v.Date)
		case Row:
			require.NotNil(t, current, "row before any header")
			rows++
			if v.Reservation.Status == models.StatusPending {
				pending++
			}
		}
	}
	check()

	assert.Equal(t, []string{"2025-01-01", "2025-01-02", "2025-01-03", "2025-01-04"}, headers)
	assert.Len(t, items, 34)
}

func TestFlatten_ReflectsStatusChange(t *testing.T) {
	dataset := MergeByDate(nil, []models.Reservation{
		res("1", at(10, 18, 0), models.StatusPending, 2),
		res("2", at(10, 19, 0), models.StatusPending, 2),
	}, time.UTC).Records

	dataset[0].Status = models.StatusConfirmed
	items := Flatten(dataset, time.UTC)

	assert.Equal(t, Header{Date: "2025-01-10", Count: 2, PendingCount: 1}, items[0])
}
