package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/medflow/ocr-service/internal/entity"
)

const dicomConfidence = 1.0

// DICOMHeader holds the raw header values the pipeline reads.
type DICOMHeader struct {
	PatientName      string
	PatientID        string
	PatientBirthDate string
	StudyDate        string
	PatientSex       string
	Modality         string
	Laterality       string
}

// HeaderReader reads a DICOM header without pixel data.
type HeaderReader func(path string) (DICOMHeader, error)

// ReadDICOMHeader parses the file with pixel data skipped.
func ReadDICOMHeader(path string) (DICOMHeader, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return DICOMHeader{}, err
	}
	get := func(t tag.Tag) string {
		elem, err := ds.FindElementByTag(t)
		if err != nil || elem.Value == nil {
			return ""
		}
		if vals, ok := elem.Value.GetValue().([]string); ok && len(vals) > 0 {
			return strings.Trim(vals[0], " \x00")
		}
		return ""
	}
	return DICOMHeader{
		PatientName:      get(tag.PatientName),
		PatientID:        get(tag.PatientID),
		PatientBirthDate: get(tag.PatientBirthDate),
		StudyDate:        get(tag.StudyDate),
		PatientSex:       get(tag.PatientSex),
		Modality:         get(tag.Modality),
		Laterality:       get(tag.Laterality),
	}, nil
}

// ExtractDICOM maps header tags to patient info and renders a short summary
// as the text output.
func (e *Extractor) ExtractDICOM(_ context.Context, path string) Extraction {
	hdr, err := e.readDICOM(path)
	if err != nil {
		return e.fail("dicom", path, err)
	}
	info := infoFromHeader(hdr)
	text := dicomSummary(info)
	if !info.Useful() {
		info = nil
	}
	return Extraction{
		Text:       text,
		Confidence: dicomConfidence,
		Info:       info,
		Method:     "dicom-header",
	}
}

func infoFromHeader(hdr DICOMHeader) *entity.ExtractedPatientInfo {
	info := &entity.ExtractedPatientInfo{
		PatientID:   hdr.PatientID,
		DateOfBirth: parseDICOMDate(hdr.PatientBirthDate),
		Gender:      hdr.PatientSex,
		ExamDate:    parseDICOMDate(hdr.StudyDate),
		ExamType:    hdr.Modality,
		Laterality:  hdr.Laterality,
		Source:      entity.SourceDICOM,
	}
	if hdr.PatientName != "" {
		// Family^Given
		parts := strings.Split(hdr.PatientName, "^")
		info.LastName = parts[0]
		if len(parts) > 1 {
			info.FirstName = parts[1]
		}
	}
	return info
}

// parseDICOMDate reads the first 8 characters as YYYYMMDD. Shorter values and
// parse failures yield nil.
func parseDICOMDate(s string) *time.Time {
	if len(s) < 8 {
		return nil
	}
	t, err := time.Parse("20060102", s[:8])
	if err != nil {
		return nil
	}
	return &t
}

func dicomSummary(info *entity.ExtractedPatientInfo) string {
	lines := []string{
		fmt.Sprintf("Patient: %s %s", info.LastName, info.FirstName),
		"ID: " + info.PatientID,
		"DOB: " + formatDate(info.DateOfBirth),
		"Study Date: " + formatDate(info.ExamDate),
		"Modality: " + info.ExamType,
		"Laterality: " + info.Laterality,
	}
	return strings.Join(lines, "\n")
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
