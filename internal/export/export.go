// Package export renders provider bookings as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"glowbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	scheduleSheet = "Schedule"
	listSheet     = "Bookings"
)

var statusFill = map[models.Status]string{
	models.StatusPending:   "#FFEB9C",
	models.StatusConfirmed: "#C6EFCE",
	models.StatusCompleted: "#DDEBF7",
	models.StatusCancelled: "#FFC7CE",
}

// Workbook is a rendered export ready to be written out.
type Workbook struct {
	f    *excelize.File
	Name string
}

// Write streams the workbook as XLSX.
func (w *Workbook) Write(out io.Writer) error {
	_, err := w.f.WriteTo(out)
	return err
}

// SaveTo writes a copy of the workbook into dir and returns its path.
func (w *Workbook) SaveTo(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}
	path := filepath.Join(dir, w.Name)
	if err := w.f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

func (w *Workbook) Close() error {
	return w.f.Close()
}

// ProviderBookings builds a workbook of bookings between the civil dates
// from and to (inclusive) in loc: a day-by-hour schedule of active bookings
// and a flat list of everything.
func ProviderBookings(from, to time.Time, loc *time.Location, bookings []*models.Booking) (*Workbook, error) {
	if loc == nil {
		loc = time.UTC
	}
	sorted := append([]*models.Booking(nil), bookings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ScheduledAt.Before(sorted[j].ScheduledAt) })

	f := excelize.NewFile()
	index, err := f.NewSheet(scheduleSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(listSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}

	if err := writeSchedule(f, from, to, loc, sorted); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeList(f, loc, sorted); err != nil {
		f.Close()
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")

	name := fmt.Sprintf("bookings_%s_to_%s.xlsx", from.Format(models.DateLayout), to.Format(models.DateLayout))
	return &Workbook{f: f, Name: name}, nil
}

func writeSchedule(f *excelize.File, from, to time.Time, loc *time.Location, bookings []*models.Booking) error {
	_ = f.SetCellValue(scheduleSheet, "A1", fmt.Sprintf("Period: %s - %s",
		from.Format(models.DateLayout), to.Format(models.DateLayout)))

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}

	dateCols := make(map[string]int)
	col := 2
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(scheduleSheet, cell, d.Format("02.01 Mon"))
		_ = f.SetCellStyle(scheduleSheet, cell, cell, headerStyle)
		dateCols[d.Format(models.DateLayout)] = col
		col++
	}
	lastCol := col - 1
	if lastCol < 2 {
		lastCol = 2
	}

	// Rows cover whole hours between the earliest and latest active booking.
	firstHour, lastHour := 24, -1
	for _, b := range bookings {
		if !b.Status.Active() && b.Status != models.StatusCompleted {
			continue
		}
		h := b.ScheduledAt.In(loc).Hour()
		if h < firstHour {
			firstHour = h
		}
		if h > lastHour {
			lastHour = h
		}
	}
	hourRows := make(map[int]int)
	for h, row := firstHour, 3; h <= lastHour; h, row = h+1, row+1 {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(scheduleSheet, cell, fmt.Sprintf("%02d:00", h))
		_ = f.SetCellStyle(scheduleSheet, cell, cell, headerStyle)
		hourRows[h] = row
	}

	for _, b := range bookings {
		local := b.ScheduledAt.In(loc)
		row, ok := hourRows[local.Hour()]
		if !ok {
			continue
		}
		c, ok := dateCols[local.Format(models.DateLayout)]
		if !ok {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(c, row)
		_ = f.SetCellValue(scheduleSheet, cell, fmt.Sprintf("%s\n%s", b.ServiceTitle, b.Status))
		if style, err := cellStyle(f, b.Status); err == nil {
			_ = f.SetCellStyle(scheduleSheet, cell, cell, style)
		}
	}

	_ = f.SetColWidth(scheduleSheet, "A", "A", 10)
	lastName, _ := excelize.ColumnNumberToName(lastCol)
	_ = f.SetColWidth(scheduleSheet, "B", lastName, 20)
	_ = f.MergeCell(scheduleSheet, "A1", lastName+"1")

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	return f.SetCellStyle(scheduleSheet, "A1", "A1", titleStyle)
}

func writeList(f *excelize.File, loc *time.Location, bookings []*models.Booking) error {
	headers := []string{"ID", "Date", "Time", "Service", "Client", "Status", "Price", "Notes", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(listSheet, cell, h)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	_ = f.SetCellStyle(listSheet, "A1", "I1", bold)

	for i, b := range bookings {
		row := i + 2
		local := b.ScheduledAt.In(loc)
		values := []interface{}{
			b.ID,
			local.Format(models.DateLayout),
			local.Format("15:04"),
			b.ServiceTitle,
			b.ClientID,
			string(b.Status),
			b.TotalPrice,
			b.Notes,
			b.CreatedAt.In(loc).Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(listSheet, cell, &values); err != nil {
			return err
		}
		statusCell, _ := excelize.CoordinatesToCellName(6, row)
		if style, err := cellStyle(f, b.Status); err == nil {
			_ = f.SetCellStyle(listSheet, statusCell, statusCell, style)
		}
	}

	_ = f.SetColWidth(listSheet, "A", "C", 12)
	_ = f.SetColWidth(listSheet, "D", "E", 38)
	_ = f.SetColWidth(listSheet, "F", "G", 12)
	_ = f.SetColWidth(listSheet, "H", "I", 24)
	return nil
}

func cellStyle(f *excelize.File, status models.Status) (int, error) {
	color, ok := statusFill[status]
	if !ok {
		color = "#FFFFFF"
	}
	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "top",
			WrapText:   true,
		},
	})
}
