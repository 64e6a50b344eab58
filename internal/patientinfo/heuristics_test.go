package patientinfo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/ocr-service/internal/entity"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExtractFromText_LabelledName(t *testing.T) {
	info := ExtractFromText("Patient: Jean Dupont\nID: AB12345")
	require.NotNil(t, info)
	assert.Equal(t, "Jean", info.LastName)
	assert.Equal(t, "Dupont", info.FirstName)
	assert.Equal(t, "AB12345", info.PatientID)
	assert.Equal(t, entity.SourceOCR, info.Source)
	assert.Equal(t, "Patient: Jean Dupont\nID: AB12345", info.RawText)
}

func TestExtractFromText_AccentedLabel(t *testing.T) {
	info := ExtractFromText("Nom : Élodie Château")
	require.NotNil(t, info)
	assert.Equal(t, "Élodie", info.LastName)
	assert.Equal(t, "Château", info.FirstName)
}

func TestExtractFromText_NoBreakSpaces(t *testing.T) {
	info := ExtractFromText("Nom\u00a0: Élodie Château")
	require.NotNil(t, info)
	assert.Equal(t, "Élodie", info.LastName)
	assert.Equal(t, "Château", info.FirstName)

	info = ExtractFromText("Patient:\u00a0Jean\u202fDupont\nN°\u202f: AB12345")
	require.NotNil(t, info)
	assert.Equal(t, "Jean", info.LastName)
	assert.Equal(t, "Dupont", info.FirstName)
	assert.Equal(t, "AB12345", info.PatientID)

	info = ExtractFromText("Patient\u00a0ID\u00a0: 4321")
	require.NotNil(t, info)
	assert.Equal(t, "4321", info.PatientID)
}

func TestExtractFromText_BareUppercaseName(t *testing.T) {
	info := ExtractFromText("compte rendu\nDUPONT Marie\nexamen")
	require.NotNil(t, info)
	assert.Equal(t, "DUPONT", info.LastName)
	assert.Equal(t, "Marie", info.FirstName)
}

func TestExtractFromText_LabelWinsOverBarePattern(t *testing.T) {
	info := ExtractFromText("MARTIN Paul\nName: Claire Leroy")
	require.NotNil(t, info)
	assert.Equal(t, "Claire", info.LastName)
	assert.Equal(t, "Leroy", info.FirstName)
}

func TestExtractFromText_PatientIDFallback(t *testing.T) {
	info := ExtractFromText("Patient ID: 1234")
	require.NotNil(t, info)
	assert.Equal(t, "1234", info.PatientID)
}

func TestExtractFromText_NumeroLabelCaseInsensitive(t *testing.T) {
	info := ExtractFromText("numéro: 99887766")
	require.NotNil(t, info)
	assert.Equal(t, "99887766", info.PatientID)
}

func TestExtractFromText_Dates(t *testing.T) {
	cases := []struct {
		text string
		want time.Time
	}{
		{"DUPONT Jean né le 15/06/1980", date(1980, 6, 15)},
		{"DUPONT Jean 1980-06-15", date(1980, 6, 15)},
		{"DUPONT Jean 15.06.1980", date(1980, 6, 15)},
		// invalid first format skipped, next format used
		{"DUPONT Jean 45/13/1980 1975-01-02", date(1975, 1, 2)},
	}
	for _, tc := range cases {
		info := ExtractFromText(tc.text)
		require.NotNil(t, info, tc.text)
		require.NotNil(t, info.DateOfBirth, tc.text)
		assert.True(t, tc.want.Equal(*info.DateOfBirth), tc.text)
	}

	info := ExtractFromText("DUPONT Jean 31/02/1980")
	require.NotNil(t, info)
	assert.Nil(t, info.DateOfBirth)
}

func TestExtractFromText_Laterality(t *testing.T) {
	info := ExtractFromText("DUPONT Jean lat:O.D.droit")
	require.NotNil(t, info)
	assert.Equal(t, "OD", info.Laterality)

	// a trailing dot followed by a space is not a word boundary
	info = ExtractFromText("DUPONT Jean O.D. fond")
	require.NotNil(t, info)
	assert.Empty(t, info.Laterality)

	info = ExtractFromText("DUPONT Jean os")
	require.NotNil(t, info)
	assert.Equal(t, "OS", info.Laterality)

	info = ExtractFromText("DUPONT Jean (OU).")
	require.NotNil(t, info)
	assert.Equal(t, "OU", info.Laterality)
}

func TestExtractFromText_LateralityInsideAccentedWord(t *testing.T) {
	info := ExtractFromText("DUPONT Jean éOSé")
	require.NotNil(t, info)
	assert.Empty(t, info.Laterality)

	info = ExtractFromText("DUPONT Jean œil\u00a0OD")
	require.NotNil(t, info)
	assert.Equal(t, "OD", info.Laterality)
}

func TestExtractFromText_NoIdentity(t *testing.T) {
	assert.Nil(t, ExtractFromText(""))
	assert.Nil(t, ExtractFromText("retinographie OD 12/03/2024"))
}

func TestExtractFromText_RawTextTruncated(t *testing.T) {
	text := "DUPONT Jean\n" + strings.Repeat("x", 1000)
	info := ExtractFromText(text)
	require.NotNil(t, info)
	assert.Len(t, info.RawText, entity.RawTextLimit)
}
