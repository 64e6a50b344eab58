package patientinfo

import (
	"regexp"

	"github.com/medflow/ocr-service/internal/entity"
)

// rule pairs a pattern with the handler that applies its submatches.
// apply returns false when the match should not count (e.g. an invalid date),
// letting the next rule run.
type rule struct {
	re    *regexp.Regexp
	apply func(m []string, info *entity.ExtractedPatientInfo) bool
}

// firstMatch runs rules in order and stops at the first one that matches and
// applies. Only the leftmost match of each pattern is considered.
func firstMatch(rules []rule, text string, info *entity.ExtractedPatientInfo) bool {
	for _, r := range rules {
		m := r.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if r.apply(m, info) {
			return true
		}
	}
	return false
}
