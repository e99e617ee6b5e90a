// Package export writes the flattened reservation feed to an Excel workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"tablebook/internal/feed"
	"tablebook/internal/models"
)

const (
	feedSheet    = "Reservations"
	summarySheet = "Summary"

	// Excel limit.
	maxSheetName = 31
)

var feedColumns = []string{"Date", "Time", "Name", "Phone", "Email", "Guests", "Status", "Requirements", "ID"}

// SheetWriter writes rows to a workbook.
type SheetWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	// WriteSection writes a bold row spanning the data columns.
	WriteSection(row []interface{}) error
	WriteRow(row []interface{}) error
	Save(w io.Writer) error
	SaveToFile(path string) error
	Close() error
}

// ExcelizeWriter implements SheetWriter on top of excelize.
type ExcelizeWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
	boldStyle    int
}

// NewExcelizeWriter creates an empty workbook.
func NewExcelizeWriter() *ExcelizeWriter {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		style = 0
	}
	return &ExcelizeWriter{file: f, boldStyle: style}
}

func (w *ExcelizeWriter) AddSheet(name string) error {
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *ExcelizeWriter) WriteHeader(columns []string) error {
	row := make([]interface{}, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	return w.writeStyled(row, true)
}

func (w *ExcelizeWriter) WriteSection(row []interface{}) error {
	return w.writeStyled(row, true)
}

func (w *ExcelizeWriter) WriteRow(row []interface{}) error {
	return w.writeStyled(row, false)
}

func (w *ExcelizeWriter) writeStyled(row []interface{}, bold bool) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	if len(row) == 0 {
		w.currentRow++
		return nil
	}

	start, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, start, &row); err != nil {
		return err
	}
	if bold && w.boldStyle != 0 {
		end, _ := excelize.CoordinatesToCellName(len(row), w.currentRow)
		_ = w.file.SetCellStyle(w.currentSheet, start, end, w.boldStyle)
	}

	w.currentRow++
	return nil
}

func (w *ExcelizeWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

func (w *ExcelizeWriter) SaveToFile(path string) error {
	return w.file.SaveAs(path)
}

func (w *ExcelizeWriter) Close() error {
	return w.file.Close()
}

// Filename builds a workbook name like "reservations_2025-01-10.xlsx".
func Filename(t time.Time) string {
	return fmt.Sprintf("reservations_%s.xlsx", t.Format(models.DateLayout))
}

// WriteFeed writes the flat list to the Reservations sheet, one bold section
// row per date header, and the dashboard counters to the Summary sheet.
func WriteFeed(w SheetWriter, items []feed.FlatItem, stats models.Stats, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}

	if err := w.AddSheet(feedSheet); err != nil {
		return err
	}
	if err := w.WriteHeader(feedColumns); err != nil {
		return err
	}

	for _, item := range items {
		var err error
		switch it := item.(type) {
		case feed.Header:
			err = w.WriteSection([]interface{}{
				it.Date,
				fmt.Sprintf("%d reservations", it.Count),
				fmt.Sprintf("%d pending", it.PendingCount),
			})
		case feed.Row:
			err = w.WriteRow(reservationRow(it.Reservation, loc))
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", item.Key(), err)
		}
	}

	if err := w.AddSheet(summarySheet); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Metric", "Value"}); err != nil {
		return err
	}
	summary := [][]interface{}{
		{"Today", stats.TodayCount},
		{"Pending", stats.PendingCount},
		{"Confirmed", stats.ConfirmedCount},
		{"Guests today", stats.TotalGuestsToday},
	}
	for _, row := range summary {
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

func reservationRow(r models.Reservation, loc *time.Location) []interface{} {
	t := r.ReserveTime.In(loc)
	return []interface{}{
		t.Format(models.DateLayout),
		t.Format("15:04"),
		r.ContactName,
		r.ContactPhone,
		r.ContactEmail,
		r.Guests,
		r.Status.String(),
		r.OtherRequirements,
		r.ID,
	}
}
