package prescription

import (
	"strings"
	"testing"

	"pharmabot/pkg/models"
)

func TestFormat_RoundTrip(t *testing.T) {
	records := []models.PrescriptionRecord{
		Parse(wellFormedReply),
		models.NewPrescriptionRecord(),
		{
			Patient: fields("Doctor's Full Name", "Dr. Rao", "Doctor's License Number", "MCI-55821"),
			Medications: []models.Fields{
				fields("Medication Name", "Metformin", "Dosage", "500mg : after food", "Duration", "30 days"),
			},
		},
	}

	for i, r := range records {
		text := Format(r)
		back := Parse(text)
		if !back.Equal(r) {
			t.Errorf("record %d did not survive Format/Parse:\n%s", i, text)
		}
	}
}

func TestFormat_IsIdempotentOverParse(t *testing.T) {
	once := Format(Parse(wellFormedReply))
	twice := Format(Parse(once))
	if once != twice {
		t.Errorf("Format(Parse(x)) not stable:\nfirst:\n%s\nsecond:\n%s", once, twice)
	}
}

func TestFormat_Layout(t *testing.T) {
	got := Format(Parse(wellFormedReply))

	for _, want := range []string{
		"Patient Information:\n- Patient's Full Name: Jane Doe\n",
		"Medications:\n- Medication Name: Amoxicillin\n  Dosage: 500mg\n  Frequency: twice daily\n",
		"- Medication Name: Ibuprofen\n  Dosage: 200mg\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Format() missing %q in:\n%s", want, got)
		}
	}
}

func TestFormat_EmptyValueIsLost(t *testing.T) {
	r := models.NewPrescriptionRecord()
	r.Patient.Set("Patient's Age", "")

	if back := Parse(Format(r)); back.Patient.Has("Patient's Age") {
		t.Error("expected empty patient value to be dropped by Parse")
	}
}
