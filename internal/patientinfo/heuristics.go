package patientinfo

import (
	"regexp"
	"strings"
	"time"

	"github.com/medflow/ocr-service/internal/entity"
)

const (
	upperAccented = `A-ZÉÈÊËÀÂÄÔÖÛÜÇ`
	lowerAccented = `a-zéèêëàâäôöûüç`

	// space is a class body for Unicode whitespace; RE2's \s is ASCII only.
	space = `\s\x{0b}\x{1c}-\x{1f}\x{85}\p{Z}`
	// wordChar is a class body for Unicode word characters.
	wordChar = `\p{L}\p{N}_`
)

// Both patterns store group 1 as the last name and group 2 as the first name.
var nameRules = []rule{
	{
		re:    regexp.MustCompile(`(?:Patient|Nom|Name)[:` + space + `]+([` + upperAccented + `][` + lowerAccented + `]+)[` + space + `]+([` + upperAccented + `][` + lowerAccented + `]+)`),
		apply: applyName,
	},
	{
		re:    regexp.MustCompile(`([A-Z][A-Z]+)[` + space + `]+([A-Z][a-z]+)`),
		apply: applyName,
	},
}

var idRules = []rule{
	{re: regexp.MustCompile(`(?i)(?:ID|N°|Numéro)[:` + space + `]*([A-Z0-9]{5,15})`), apply: applyPatientID},
	{re: regexp.MustCompile(`(?i)(?:Patient[` + space + `]*ID)[:` + space + `]*([A-Z0-9]+)`), apply: applyPatientID},
}

var dobRules = []rule{
	{re: regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4})`), apply: applyDOB("02/01/2006")},
	{re: regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`), apply: applyDOB("2006-01-02")},
	{re: regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})`), apply: applyDOB("02.01.2006")},
}

// Word boundaries are spelled out over Unicode letters. A dotted form only
// ends on a boundary when a word character follows its final dot.
var lateralityRules = []rule{
	{
		re: regexp.MustCompile(`(?i)(?:^|[^` + wordChar + `])` +
			`(?:(OD|OS|OU)(?:[^` + wordChar + `]|$)|(O\.D\.|O\.S\.|O\.U\.)[` + wordChar + `])`),
		apply: func(m []string, info *entity.ExtractedPatientInfo) bool {
			eye := m[1]
			if eye == "" {
				eye = m[2]
			}
			info.Laterality = strings.ToUpper(strings.ReplaceAll(eye, ".", ""))
			return true
		},
	},
}

func applyName(m []string, info *entity.ExtractedPatientInfo) bool {
	info.LastName = m[1]
	info.FirstName = m[2]
	return true
}

func applyPatientID(m []string, info *entity.ExtractedPatientInfo) bool {
	info.PatientID = m[1]
	return true
}

func applyDOB(layout string) func([]string, *entity.ExtractedPatientInfo) bool {
	return func(m []string, info *entity.ExtractedPatientInfo) bool {
		dob, err := time.Parse(layout, m[0])
		if err != nil {
			return false
		}
		info.DateOfBirth = &dob
		return true
	}
}

// ExtractFromText guesses patient identity from free OCR text. It returns nil
// for empty text or when no name or ID was found.
func ExtractFromText(text string) *entity.ExtractedPatientInfo {
	if text == "" {
		return nil
	}
	info := &entity.ExtractedPatientInfo{
		Source:  entity.SourceOCR,
		RawText: entity.TruncateRaw(text),
	}

	firstMatch(nameRules, text, info)
	firstMatch(idRules, text, info)
	firstMatch(dobRules, text, info)
	firstMatch(lateralityRules, text, info)

	if !info.Useful() {
		return nil
	}
	return info
}
