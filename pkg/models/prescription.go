package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Well-known labels emitted by the extraction prompt.
const (
	MedicationNameLabel = "Medication Name"
	NotAvailable        = "<NA>"
)

// Fields is an insertion-ordered label -> value mapping.
// Overwriting a label keeps its original position.
type Fields struct {
	keys   []string
	values map[string]string
}

// NewFields creates an empty Fields mapping
func NewFields() Fields {
	return Fields{values: make(map[string]string)}
}

// Set inserts or overwrites label with value
func (f *Fields) Set(label, value string) {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	if _, exists := f.values[label]; !exists {
		f.keys = append(f.keys, label)
	}
	f.values[label] = value
}

// Get returns the value for label and whether it is present
func (f Fields) Get(label string) (string, bool) {
	v, ok := f.values[label]
	return v, ok
}

// Value returns the value for label, or "" when absent
func (f Fields) Value(label string) string {
	return f.values[label]
}

// Has reports whether label is present
func (f Fields) Has(label string) bool {
	_, ok := f.values[label]
	return ok
}

// Keys returns the labels in insertion order
func (f Fields) Keys() []string {
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Len returns the number of labels
func (f Fields) Len() int {
	return len(f.keys)
}

// Equal reports whether both mappings hold the same labels, values and order
func (f Fields) Equal(other Fields) bool {
	if len(f.keys) != len(other.keys) {
		return false
	}
	for i, k := range f.keys {
		if other.keys[i] != k || other.values[k] != f.values[k] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the mapping as a JSON object keeping label order
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of strings keeping label order
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields: expected JSON object, got %v", tok)
	}

	*f = NewFields()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("fields: expected string key, got %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("fields: value for %q: %w", key, err)
		}
		f.Set(key, value)
	}

	_, err = dec.Token()
	return err
}

// PrescriptionRecord is the structured result of reading one prescription.
// Each upload produces an independent record; nothing is stored.
type PrescriptionRecord struct {
	Patient     Fields   `json:"patient_information"` // Patient and prescriber details as labelled by the model
	Medications []Fields `json:"medications"`         // One entry per "Medication Name" line, in source order
}

// NewPrescriptionRecord returns an empty record
func NewPrescriptionRecord() PrescriptionRecord {
	return PrescriptionRecord{
		Patient:     NewFields(),
		Medications: []Fields{},
	}
}

// IsEmpty reports whether nothing was extracted
func (r PrescriptionRecord) IsEmpty() bool {
	return r.Patient.Len() == 0 && len(r.Medications) == 0
}

// Equal compares two records field by field, order included
func (r PrescriptionRecord) Equal(other PrescriptionRecord) bool {
	if !r.Patient.Equal(other.Patient) || len(r.Medications) != len(other.Medications) {
		return false
	}
	for i := range r.Medications {
		if !r.Medications[i].Equal(other.Medications[i]) {
			return false
		}
	}
	return true
}

// MedicationColumns returns the union of labels across entries in first-seen order
func MedicationColumns(entries []Fields) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, entry := range entries {
		for _, k := range entry.keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	return columns
}
