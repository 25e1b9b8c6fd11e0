package render

import (
	"fmt"

	"github.com/xuri/excelize/v2"
	"pharmabot/pkg/models"
)

// XLSXContentType is the media type of WorkbookXLSX output.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WorkbookXLSX lays the record out in two sheets, "Patient Information" and
// "Medications", shaped like the terminal tables.
func WorkbookXLSX(record models.PrescriptionRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes the patient sheet
	if err := f.SetSheetName(f.GetSheetName(0), PatientInformationTitle); err != nil {
		return nil, fmt.Errorf("xlsx rename sheet: %w", err)
	}
	if _, err := f.NewSheet(MedicationsTitle); err != nil {
		return nil, fmt.Errorf("xlsx new sheet: %w", err)
	}

	if record.Patient.Len() == 0 {
		if err := writeRows(f, PatientInformationTitle, nil, [][]string{{NoPatientInformation}}); err != nil {
			return nil, err
		}
	} else {
		header, row := PatientRow(record.Patient)
		if err := writeRows(f, PatientInformationTitle, header, [][]string{row}); err != nil {
			return nil, err
		}
	}

	if len(record.Medications) == 0 {
		if err := writeRows(f, MedicationsTitle, nil, [][]string{{NoMedicationInformation}}); err != nil {
			return nil, err
		}
	} else {
		header, rows := MedicationRows(record.Medications)
		if err := writeRows(f, MedicationsTitle, header, rows); err != nil {
			return nil, err
		}
	}

	index, _ := f.GetSheetIndex(PatientInformationTitle)
	f.SetActiveSheet(index)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, header []string, rows [][]string) error {
	row := 1
	write := func(col int, v string) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, v)
	}

	if len(header) > 0 {
		for i, h := range header {
			if err := write(i+1, h); err != nil {
				return fmt.Errorf("xlsx %s header: %w", sheet, err)
			}
		}
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err == nil {
			last, _ := excelize.CoordinatesToCellName(len(header), 1)
			_ = f.SetCellStyle(sheet, "A1", last, style)
		}
		row++
	}

	for _, values := range rows {
		for i, v := range values {
			if err := write(i+1, v); err != nil {
				return fmt.Errorf("xlsx %s row %d: %w", sheet, row, err)
			}
		}
		row++
	}

	width := len(header)
	if width == 0 {
		width = 1
	}
	lastCol, _ := excelize.ColumnNumberToName(width)
	_ = f.SetColWidth(sheet, "A", lastCol, 24)
	return nil
}
