package constants

import "strings"

// DeviceType identifies the imaging device vendor that produced a file.
// It selects the filename tokenization rules.
type DeviceType string

const (
	ZEISS   DeviceType = "zeiss"
	SOLIX   DeviceType = "solix"
	TOMEY   DeviceType = "tomey"
	QUANTEL DeviceType = "quantel"
	GENERIC DeviceType = "generic"
)

var allDevices = []DeviceType{ZEISS, SOLIX, TOMEY, QUANTEL, GENERIC}

// DeviceTypes lists the known device types as strings.
func DeviceTypes() []string {
	out := make([]string, len(allDevices))
	for i, d := range allDevices {
		out[i] = string(d)
	}
	return out
}

// ParseDeviceType maps free-form input to a known DeviceType. Unknown values
// fall back to GENERIC with ok=false.
func ParseDeviceType(input string) (DeviceType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return GENERIC, false
	}
	for _, d := range allDevices {
		if normalized == string(d) {
			return d, true
		}
	}
	return GENERIC, false
}
