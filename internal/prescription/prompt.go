package prescription

import "strings"

// extractionInstructions is the fixed part of the extraction prompt. The
// layout it shows is the one Parse consumes.
const extractionInstructions = `Analyze the following prescription text and extract the key information into a structured format.
Prioritize extracting: Patient Name, Doctor's Name, Doctor's License Number, Date, Medication Name, Dosage, Frequency, and Duration.
If any information is not found, indicate it as "<NA>".  Output in a consistent, table-like format, as shown below:

Patient Information:
- Patient's Full Name: [Patient Name]
- Patient's Age: [Age]
- Patient's Gender: [Gender]
- Prescription Date: [Date]
- Doctor's Full Name: [Doctor's Name]
- Doctor's License Number: [License Number]

Medications:
- Medication Name: [Medication 1 Name]
  Dosage: [Dosage 1]
  Frequency: [Frequency 1]
  Duration: [Duration 1]
- Medication Name: [Medication 2 Name]
  Dosage: [Dosage 2]
  Frequency: [Frequency 2]
  Duration: [Duration 2]
... (and so on for other medications)

Prescription Text:
`

// BuildPrompt embeds OCR text into the extraction prompt. The text is
// inserted as-is.
func BuildPrompt(extractedText string) string {
	var prompt strings.Builder
	prompt.Grow(len(extractionInstructions) + len(extractedText) + 1)
	prompt.WriteString(extractionInstructions)
	prompt.WriteString(extractedText)
	prompt.WriteString("\n")
	return prompt.String()
}
