package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	sets := DefaultExtensionSets()

	cases := map[string]FileType{
		".jpg":   IMAGE,
		".JPEG":  IMAGE,
		"tif":    IMAGE,
		".pdf":   PDF,
		".PDF":   PDF,
		".dcm":   DICOM,
		".dicom": DICOM,
	}
	for ext, want := range cases {
		got, ok := sets.Classify(ext)
		assert.True(t, ok, ext)
		assert.Equal(t, want, got, ext)
	}

	_, ok := sets.Classify(".txt")
	assert.False(t, ok)
	_, ok = sets.Classify("")
	assert.False(t, ok)
}

func TestClassify_DICOMWinsOverlap(t *testing.T) {
	sets := ExtensionSets{Image: []string{".dat"}, DICOM: []string{".dat"}}
	got, ok := sets.Classify(".dat")
	assert.True(t, ok)
	assert.Equal(t, DICOM, got)
}

func TestExtensionSetsSet(t *testing.T) {
	set := DefaultExtensionSets().Set()
	assert.Len(t, set, 9)
	assert.Contains(t, set, ".bmp")
	assert.Contains(t, set, ".dicom")
}

func TestParseDeviceType(t *testing.T) {
	d, ok := ParseDeviceType(" ZEISS ")
	assert.True(t, ok)
	assert.Equal(t, ZEISS, d)

	d, ok = ParseDeviceType("canon")
	assert.False(t, ok)
	assert.Equal(t, GENERIC, d)

	assert.Equal(t, []string{"zeiss", "solix", "tomey", "quantel", "generic"}, DeviceTypes())
}

func TestTaskStatusTerminal(t *testing.T) {
	assert.True(t, TaskStatusSuccess.Terminal())
	assert.True(t, TaskStatusFailure.Terminal())
	assert.False(t, TaskStatusStarted.Terminal())
	assert.False(t, TaskStatusRetry.Terminal())
}
