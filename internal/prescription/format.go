package prescription

import (
	"strings"

	"pharmabot/pkg/models"
)

// Format writes a record back in the layout Parse reads.
//
// Parse(Format(r)) reproduces r as long as labels hold no colon, values are
// non-empty single lines and no text contains a section header.
func Format(record models.PrescriptionRecord) string {
	var out strings.Builder

	out.WriteString(PatientInformationHeader)
	out.WriteString("\n")
	for _, label := range record.Patient.Keys() {
		out.WriteString("- ")
		out.WriteString(label)
		out.WriteString(": ")
		out.WriteString(record.Patient.Value(label))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(MedicationsHeader)
	out.WriteString("\n")
	for _, entry := range record.Medications {
		out.WriteString(MedicationNamePrefix)
		out.WriteString(" ")
		out.WriteString(entry.Value(models.MedicationNameLabel))
		out.WriteString("\n")
		for _, label := range entry.Keys() {
			if label == models.MedicationNameLabel {
				continue
			}
			out.WriteString("  ")
			out.WriteString(label)
			out.WriteString(": ")
			out.WriteString(entry.Value(label))
			out.WriteString("\n")
		}
	}

	return out.String()
}
