// Package ingest discovers device export files on local folders and network
// shares.
package ingest

import (
	"go.uber.org/zap"

	"github.com/medflow/ocr-service/constants"
)

// Limits applied when options leave them unset.
const (
	DefaultMaxScanFiles       = 1000
	DefaultMaxPatients        = 20
	DefaultMaxFilesPerPatient = 10
	sampleLimit               = 10
)

// ScanOptions controls ScanFolder.
type ScanOptions struct {
	MaxFiles   int
	Extensions []string // empty means every supported extension
	Recursive  bool
}

// ImportOptions controls FilesForImport.
type ImportOptions struct {
	MaxPatients        int
	MaxFilesPerPatient int
	Extensions         []string
	Recursive          bool
}

// Scanner walks folders for files with a supported extension.
type Scanner struct {
	supported constants.ExtensionSets
	logger    *zap.Logger
}

func NewScanner(supported constants.ExtensionSets, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{supported: supported, logger: logger}
}

func (s *Scanner) allowedSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return s.supported.Set()
	}
	return extSet(exts)
}
