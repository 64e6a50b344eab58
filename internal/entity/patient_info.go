package entity

import (
	"strings"
	"time"
)

// Laterality values (ophthalmic convention).
const (
	LateralityRight = "OD"
	LateralityLeft  = "OS"
	LateralityBoth  = "OU"
)

// Provenance tags for ExtractedPatientInfo.Source.
const (
	SourceOCR      = "ocr"
	SourceFilename = "filename"
	SourceDICOM    = "dicom"
)

// RawTextLimit caps ExtractedPatientInfo.RawText.
const RawTextLimit = 500

// ExtractedPatientInfo is a structured guess at patient identity recovered
// from OCR text, a DICOM header or a filename. Empty strings and nil dates mean
// "not found".
type ExtractedPatientInfo struct {
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	PatientID   string     `json:"patient_id,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	ExamDate    *time.Time `json:"exam_date,omitempty"`
	ExamType    string     `json:"exam_type,omitempty"`
	Laterality  string     `json:"laterality,omitempty"`
	RawText     string     `json:"raw_text,omitempty"`
	Source      string     `json:"source"`
}

// Useful reports whether the guess identifies anyone at all.
func (p *ExtractedPatientInfo) Useful() bool {
	return p != nil && (p.FirstName != "" || p.LastName != "" || p.PatientID != "")
}

// PatientKey is the identity used to count distinct patients in a batch:
// the patient ID when known, else "last_first", lowercased.
func (p *ExtractedPatientInfo) PatientKey() string {
	if p == nil {
		return ""
	}
	key := p.PatientID
	if key == "" {
		key = p.LastName + "_" + p.FirstName
	}
	return strings.ToLower(key)
}

// TruncateRaw returns the first RawTextLimit characters of s.
func TruncateRaw(s string) string {
	r := []rune(s)
	if len(r) <= RawTextLimit {
		return s
	}
	return string(r[:RawTextLimit])
}
