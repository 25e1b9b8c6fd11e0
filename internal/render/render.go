// Package render presents prescription records as terminal tables, XLSX
// workbooks, JSON or the plain text layout.
package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"pharmabot/internal/prescription"
	"pharmabot/pkg/models"
)

// Placeholders printed for empty sections.
const (
	NoPatientInformation    = "No Patient information Found"
	NoMedicationInformation = "No Medicine Information Found"
)

// Section titles.
const (
	PatientInformationTitle = "Patient Information"
	MedicationsTitle        = "Medications"
)

// Output formats accepted by Write.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatXLSX  = "xlsx"
	FormatText  = "text"
)

// Formats lists the formats Write accepts.
var Formats = []string{FormatTable, FormatJSON, FormatXLSX, FormatText}

// Write renders record to w in the named format.
func Write(w io.Writer, format string, record models.PrescriptionRecord) error {
	switch format {
	case "", FormatTable:
		return WriteTables(w, record)
	case FormatJSON:
		data, err := JSON(record)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatXLSX:
		data, err := WorkbookXLSX(record)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatText:
		_, err := io.WriteString(w, prescription.Format(record))
		return err
	default:
		return fmt.Errorf("render: unknown format %q", format)
	}
}

// PatientRow returns the patient table: labels as header, values as the only row.
func PatientRow(patient models.Fields) (header, row []string) {
	header = patient.Keys()
	row = make([]string, len(header))
	for i, label := range header {
		row[i] = patient.Value(label)
	}
	return header, row
}

// MedicationRows returns the medication table over MedicationColumns.
// Labels an entry lacks are blank cells.
func MedicationRows(entries []models.Fields) (header []string, rows [][]string) {
	header = models.MedicationColumns(entries)
	rows = make([][]string, 0, len(entries))
	for _, entry := range entries {
		row := make([]string, len(header))
		for i, label := range header {
			row[i] = entry.Value(label)
		}
		rows = append(rows, row)
	}
	return header, rows
}

// WriteTables prints the patient and medication tables.
func WriteTables(w io.Writer, record models.PrescriptionRecord) error {
	if _, err := fmt.Fprintf(w, "%s\n", PatientInformationTitle); err != nil {
		return err
	}
	if record.Patient.Len() == 0 {
		if _, err := fmt.Fprintln(w, NoPatientInformation); err != nil {
			return err
		}
	} else {
		header, row := PatientRow(record.Patient)
		table := newTable(w, header)
		table.Append(row)
		table.Render()
	}

	if _, err := fmt.Fprintf(w, "\n%s\n", MedicationsTitle); err != nil {
		return err
	}
	if len(record.Medications) == 0 {
		_, err := fmt.Fprintln(w, NoMedicationInformation)
		return err
	}
	header, rows := MedicationRows(record.Medications)
	table := newTable(w, header)
	table.AppendBulk(rows)
	table.Render()
	return nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	// keep the labels exactly as the model wrote them
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	return table
}

// JSON returns the record as indented JSON with labels in reading order.
func JSON(record models.PrescriptionRecord) ([]byte, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: marshal record: %w", err)
	}
	return data, nil
}
