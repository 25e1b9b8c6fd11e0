package prescription

import (
	"regexp"
	"strings"

	"pharmabot/pkg/models"
)

// Section headers and prefixes of the layout requested by BuildPrompt.
const (
	PatientInformationHeader = "Patient Information:"
	MedicationsHeader        = "Medications:"
	MedicationNamePrefix     = "- " + models.MedicationNameLabel + ":"
)

type section int

const (
	sectionNone section = iota
	sectionPatient
	sectionMedications
)

var patientFieldPattern = regexp.MustCompile(`^- (.*?): (.*)`)

// Parse turns a model reply into a PrescriptionRecord.
//
// Parse never fails: lines it cannot place are skipped, so unrelated or
// empty text yields an empty record.
func Parse(text string) models.PrescriptionRecord {
	record := models.NewPrescriptionRecord()
	current := sectionNone

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		// Headers match anywhere in the line.
		if strings.Contains(line, PatientInformationHeader) {
			current = sectionPatient
			continue
		}
		if strings.Contains(line, MedicationsHeader) {
			current = sectionMedications
			continue
		}

		switch current {
		case sectionPatient:
			parsePatientLine(&record, line)
		case sectionMedications:
			parseMedicationLine(&record, line)
		}
	}

	return record
}

func parsePatientLine(record *models.PrescriptionRecord, line string) {
	match := patientFieldPattern.FindStringSubmatch(line)
	if match == nil {
		return
	}
	record.Patient.Set(strings.TrimSpace(match[1]), strings.TrimSpace(match[2]))
}

func parseMedicationLine(record *models.PrescriptionRecord, line string) {
	if strings.HasPrefix(line, MedicationNamePrefix) {
		entry := models.NewFields()
		entry.Set(models.MedicationNameLabel, strings.TrimSpace(strings.TrimPrefix(line, MedicationNamePrefix)))
		record.Medications = append(record.Medications, entry)
		return
	}

	// Field lines attach to the entry being populated; before the first
	// name there is nothing to attach to.
	if len(record.Medications) == 0 {
		return
	}
	label, value, found := strings.Cut(line, ":")
	if !found {
		return
	}
	last := &record.Medications[len(record.Medications)-1]
	last.Set(strings.TrimSpace(label), strings.TrimSpace(value))
}
