package audit

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"klemz/internal/models"
)

var historyColumns = []string{"Appointment", "Date", "Time", "Barber", "Haircut", "Price", "Created"}

// ExportHistory writes the user's appointment history as an .xlsx sheet.
func ExportHistory(appointments []models.Appointment, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "History"
	f.SetSheetName("Sheet1", sheet)

	for i, col := range historyColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}

	for row, appt := range appointments {
		values := []any{
			appt.ID,
			appt.Date,
			appt.TimeOfDay,
			appt.Provider.FullName,
			appt.Offering.Name,
			appt.Offering.Price,
			appt.CreatedAt.Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row+1, err)
			}
		}
	}

	return f.Write(w)
}
