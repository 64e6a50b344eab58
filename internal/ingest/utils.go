package ingest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/medflow/ocr-service/constants"
)

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// CheckNetworkShares reports, per share name, whether the mount point
// exists and is a directory.
func CheckNetworkShares(shares map[string]string) map[string]bool {
	status := make(map[string]bool, len(shares))
	for name, path := range shares {
		fi, err := os.Stat(path)
		status[name] = err == nil && fi.IsDir()
	}
	return status
}

func extSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		if e = constants.NormalizeExt(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[strings.ToLower(filepath.Ext(path))]
	return ok
}
