package constants

import "strings"

// FileType is the coarse format a file is routed by.
type FileType string

const (
	IMAGE FileType = "image"
	PDF   FileType = "pdf"
	DICOM FileType = "dicom"
)

// Default extension sets (lowercase, leading dot).
var (
	DefaultImageExtensions = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp"}
	DefaultPDFExtensions   = []string{".pdf"}
	DefaultDICOMExtensions = []string{".dcm", ".dicom"}
)

// ExtensionSets holds the three disjoint sets used for classification.
type ExtensionSets struct {
	Image []string
	PDF   []string
	DICOM []string
}

// DefaultExtensionSets returns a copy of the built-in sets.
func DefaultExtensionSets() ExtensionSets {
	return ExtensionSets{
		Image: append([]string(nil), DefaultImageExtensions...),
		PDF:   append([]string(nil), DefaultPDFExtensions...),
		DICOM: append([]string(nil), DefaultDICOMExtensions...),
	}
}

// Classify maps an extension to its FileType. DICOM is checked first, then PDF, then image.
func (s ExtensionSets) Classify(ext string) (FileType, bool) {
	ext = NormalizeExt(ext)
	switch {
	case contains(s.DICOM, ext):
		return DICOM, true
	case contains(s.PDF, ext):
		return PDF, true
	case contains(s.Image, ext):
		return IMAGE, true
	}
	return "", false
}

// All returns every supported extension.
func (s ExtensionSets) All() []string {
	out := make([]string, 0, len(s.Image)+len(s.PDF)+len(s.DICOM))
	out = append(out, s.Image...)
	out = append(out, s.PDF...)
	out = append(out, s.DICOM...)
	return out
}

// Set returns the union of all sets keyed by normalized extension.
func (s ExtensionSets) Set() map[string]struct{} {
	set := make(map[string]struct{})
	for _, e := range s.All() {
		set[NormalizeExt(e)] = struct{}{}
	}
	return set
}

// NormalizeExt lowercases an extension and makes sure it carries a leading dot.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func contains(list []string, ext string) bool {
	for _, e := range list {
		if NormalizeExt(e) == ext {
			return true
		}
	}
	return false
}
