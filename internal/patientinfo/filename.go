package patientinfo

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/medflow/ocr-service/constants"
	"github.com/medflow/ocr-service/internal/entity"
)

var (
	reGenericSplit       = regexp.MustCompile(`[_\-` + space + `]+`)
	reFilenameLaterality = regexp.MustCompile(`(?i)[_\-` + space + `](OD|OS|OU)[_\-` + space + `.]`)
)

// ParseFilename recovers patient identity from a file name using the naming
// convention of the given device. The extension is stripped first.
func ParseFilename(filename string, device constants.DeviceType) *entity.ExtractedPatientInfo {
	stem := stemOf(filename)
	info := &entity.ExtractedPatientInfo{Source: entity.SourceFilename}

	switch device {
	case constants.ZEISS:
		parseZeiss(stem, info)
	case constants.SOLIX:
		parseSolix(stem, info)
	case constants.TOMEY:
		parseTomey(stem, info)
	default:
		parseGeneric(stem, info)
	}

	// a separator-delimited eye token anywhere in the name wins
	if m := reFilenameLaterality.FindStringSubmatch(stem); m != nil {
		info.Laterality = strings.ToUpper(m[1])
	}

	if !info.Useful() {
		return nil
	}
	return info
}

// LastName_FirstName_PatientID_YYYYMMDD[_...]
func parseZeiss(stem string, info *entity.ExtractedPatientInfo) {
	parts := strings.Split(stem, "_")
	if len(parts) < 4 {
		return
	}
	info.LastName = parts[0]
	info.FirstName = parts[1]
	info.PatientID = parts[2]
	if len(parts[3]) == 8 {
		if dob, err := time.Parse("20060102", parts[3]); err == nil {
			info.DateOfBirth = &dob
		}
	}
	for _, p := range parts {
		if eye := strings.ToUpper(p); isEyeToken(eye) {
			info.Laterality = eye
			break
		}
	}
}

func parseSolix(stem string, info *entity.ExtractedPatientInfo) {
	parts := strings.Split(strings.ReplaceAll(stem, "-", "_"), "_")
	if len(parts) < 2 || isDigits(parts[0]) {
		return
	}
	info.LastName = parts[0]
	if !isDigits(parts[1]) {
		info.FirstName = parts[1]
	}
}

func parseTomey(stem string, info *entity.ExtractedPatientInfo) {
	parts := strings.Split(stem, "_")
	if len(parts) < 2 {
		return
	}
	info.LastName = parts[0]
	info.FirstName = parts[1]
}

func parseGeneric(stem string, info *entity.ExtractedPatientInfo) {
	parts := reGenericSplit.Split(stem, -1)
	if len(parts) < 2 || !isAlpha(parts[0]) {
		return
	}
	info.LastName = parts[0]
	if isAlpha(parts[1]) {
		info.FirstName = parts[1]
	}
}

func stemOf(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return base
	}
	return stem
}

func isEyeToken(s string) bool {
	return s == entity.LateralityRight || s == entity.LateralityLeft || s == entity.LateralityBoth
}

// isDigits and isAlpha are false for the empty string.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
