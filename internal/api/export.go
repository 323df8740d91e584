package api

import (
	"fmt"
	"net/http"
	"time"

	"handyhub/internal/metrics"
	"handyhub/internal/models"

	"github.com/xuri/excelize/v2"
)

var exportColumns = []string{
	"ID", "Customer", "Provider", "Service", "Requested date",
	"Visiting price", "Max price", "Status", "Feedback", "Created at",
}

// handleExportBookings streams all bookings as an XLSX workbook.
func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	if !identity.IsAdmin() {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	bookings, err := s.bookings.AllBookings(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	f, err := buildExportWorkbook(bookings)
	if err != nil {
		s.log.Error().Err(err).Msg("build export workbook error")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer f.Close()

	fileName := fmt.Sprintf("bookings_%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	if err := f.Write(w); err != nil {
		s.log.Error().Err(err).Msg("write export error")
		return
	}

	metrics.IncHTTP("bookings_export")
}

func buildExportWorkbook(bookings []*models.Booking) (*excelize.File, error) {
	f := excelize.NewFile()

	const sheetName = "Bookings"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for col, title := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheetName, cell, title)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, b := range bookings {
		row := i + 2
		values := []any{
			b.ID, b.CustomerUsername, b.ProviderUsername, b.Service,
			b.RequestedDate.Format("2006-01-02"),
			b.VisitingPrice, b.MaxPrice, b.Status, b.Feedback,
			b.CreatedAt.Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 38)
	_ = f.SetColWidth(sheetName, "B", "J", 18)

	return f, nil
}
