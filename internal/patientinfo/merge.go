package patientinfo

import (
	"time"

	"github.com/medflow/ocr-service/internal/entity"
)

// Merge combines two guesses field by field, preferring primary. RawText is
// always primary's; Source becomes "primary+secondary". When only one side
// is present it is returned as is.
func Merge(primary, secondary *entity.ExtractedPatientInfo) *entity.ExtractedPatientInfo {
	switch {
	case primary == nil && secondary == nil:
		return nil
	case primary == nil:
		return secondary
	case secondary == nil:
		return primary
	}
	return &entity.ExtractedPatientInfo{
		FirstName:   firstNonEmpty(primary.FirstName, secondary.FirstName),
		LastName:    firstNonEmpty(primary.LastName, secondary.LastName),
		PatientID:   firstNonEmpty(primary.PatientID, secondary.PatientID),
		DateOfBirth: firstDate(primary.DateOfBirth, secondary.DateOfBirth),
		Gender:      firstNonEmpty(primary.Gender, secondary.Gender),
		ExamDate:    firstDate(primary.ExamDate, secondary.ExamDate),
		ExamType:    firstNonEmpty(primary.ExamType, secondary.ExamType),
		Laterality:  firstNonEmpty(primary.Laterality, secondary.Laterality),
		RawText:     primary.RawText,
		Source:      primary.Source + "+" + secondary.Source,
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstDate(a, b *time.Time) *time.Time {
	if a != nil {
		return a
	}
	return b
}
