package ingest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/medflow/ocr-service/constants"
	"github.com/medflow/ocr-service/internal/entity"
)

// walkFiles calls fn for every non-hidden regular file under root, in lexical
// order. Hidden directories are not entered. fn returning false stops the
// walk. Unreadable entries are logged and skipped.
func (s *Scanner) walkFiles(ctx context.Context, root string, recursive bool, fn func(path string, d fs.DirEntry) bool) error {
	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return err
		}
		for _, d := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || IsHidden(d.Name()) {
				continue
			}
			if !fn(filepath.Join(root, d.Name()), d) {
				return nil
			}
		}
		return nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			s.logger.Warn("ingest.walk.skip", zap.String("path", path), zap.Error(walkErr))
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !fn(path, d) {
			return filepath.SkipAll
		}
		return nil
	})
	return err
}

// ScanFolder counts supported files under root without processing them.
// A missing root yields an empty result.
func (s *Scanner) ScanFolder(ctx context.Context, root string, opts ScanOptions) (entity.FolderScanResult, error) {
	res := entity.FolderScanResult{
		FolderPath:  root,
		FilesByType: map[string]int{},
		SampleFiles: []string{},
	}
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		return res, nil
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxScanFiles
	}
	exts := s.allowedSet(opts.Extensions)
	parents := map[string]struct{}{}

	err := s.walkFiles(ctx, root, opts.Recursive, func(path string, _ fs.DirEntry) bool {
		if !allowed(path, exts) {
			return true
		}
		res.TotalFiles++
		res.FilesByType[strings.ToLower(filepath.Ext(path))]++
		if len(res.SampleFiles) < sampleLimit {
			res.SampleFiles = append(res.SampleFiles, path)
		}
		parents[filepath.Base(filepath.Dir(path))] = struct{}{}
		return res.TotalFiles < opts.MaxFiles
	})
	res.EstimatedPatients = len(parents)
	if err != nil {
		return res, err
	}

	s.logger.Info("ingest.scan.done",
		zap.String("root", root),
		zap.Int("total_files", res.TotalFiles),
		zap.Int("estimated_patients", res.EstimatedPatients),
	)
	return res, nil
}

// FilesForImport groups supported files by patient key and returns the
// MaxPatients groups with the most recent files, each holding at most
// MaxFilesPerPatient files, newest first.
func (s *Scanner) FilesForImport(ctx context.Context, root string, device constants.DeviceType, opts ImportOptions) ([]entity.PatientGroup, error) {
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		return []entity.PatientGroup{}, nil
	}
	if opts.MaxPatients <= 0 {
		opts.MaxPatients = DefaultMaxPatients
	}
	if opts.MaxFilesPerPatient <= 0 {
		opts.MaxFilesPerPatient = DefaultMaxFilesPerPatient
	}
	exts := s.allowedSet(opts.Extensions)

	groups := map[string][]entity.FileEntry{}
	var order []string
	err := s.walkFiles(ctx, root, opts.Recursive, func(path string, d fs.DirEntry) bool {
		if !allowed(path, exts) {
			return true
		}
		fi, err := d.Info()
		if err != nil {
			s.logger.Warn("ingest.stat.failed", zap.String("path", path), zap.Error(err))
			return true
		}
		key := PatientKey(path, device)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], entity.FileEntry{
			Path:    path,
			Name:    fi.Name(),
			Ext:     strings.ToLower(filepath.Ext(path)),
			ModTime: fi.ModTime(),
			Size:    fi.Size(),
		})
		return true
	})
	if err != nil {
		return nil, err
	}

	out := make([]entity.PatientGroup, 0, len(order))
	for _, key := range order {
		files := groups[key]
		slices.SortStableFunc(files, func(a, b entity.FileEntry) int {
			return b.ModTime.Compare(a.ModTime)
		})
		out = append(out, entity.PatientGroup{
			PatientKey:     key,
			Files:          files[:min(len(files), opts.MaxFilesPerPatient)],
			TotalFiles:     len(files),
			LatestFileDate: files[0].ModTime,
		})
	}
	slices.SortStableFunc(out, func(a, b entity.PatientGroup) int {
		return b.LatestFileDate.Compare(a.LatestFileDate)
	})
	out = out[:min(len(out), opts.MaxPatients)]

	s.logger.Info("ingest.import.grouped",
		zap.String("root", root),
		zap.String("device", string(device)),
		zap.Int("patients", len(out)),
	)
	return out, nil
}

// PatientKey derives the grouping key of a file: for ZEISS exports the first
// three "_" tokens of the stem, otherwise the parent folder name. Lowercased.
func PatientKey(path string, device constants.DeviceType) string {
	key := filepath.Base(filepath.Dir(path))
	if device == constants.ZEISS {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if parts := strings.Split(stem, "_"); len(parts) >= 3 {
			key = strings.Join(parts[:3], "_")
		}
	}
	return strings.TrimSpace(strings.ToLower(key))
}
