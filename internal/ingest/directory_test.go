package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medflow/ocr-service/constants"
)

func write(t *testing.T, root, rel string, mtime time.Time) string {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(rel), 0o644))
	if !mtime.IsZero() {
		require.NoError(t, os.Chtimes(p, mtime, mtime))
	}
	return p
}

func newScanner() *Scanner {
	return NewScanner(constants.DefaultExtensionSets(), zap.NewNop())
}

func TestCheckNetworkShares(t *testing.T) {
	dir := t.TempDir()
	file := write(t, dir, "plain.txt", time.Time{})

	status := CheckNetworkShares(map[string]string{
		"zeiss":   dir,
		"file":    file,
		"missing": filepath.Join(dir, "nope"),
	})
	assert.Equal(t, map[string]bool{"zeiss": true, "file": false, "missing": false}, status)
}

func TestScanFolder(t *testing.T) {
	root := t.TempDir()
	write(t, root, "dupont/a.jpg", time.Time{})
	write(t, root, "dupont/b.PDF", time.Time{})
	write(t, root, "martin/c.dcm", time.Time{})
	write(t, root, "martin/notes.txt", time.Time{})
	write(t, root, "martin/.hidden.jpg", time.Time{})
	write(t, root, ".cache/d.jpg", time.Time{})
	write(t, root, "top.png", time.Time{})

	res, err := newScanner().ScanFolder(context.Background(), root, ScanOptions{Recursive: true})
	require.NoError(t, err)

	assert.Equal(t, root, res.FolderPath)
	assert.Equal(t, 4, res.TotalFiles)
	assert.Equal(t, map[string]int{".jpg": 1, ".pdf": 1, ".dcm": 1, ".png": 1}, res.FilesByType)
	assert.Equal(t, 3, res.EstimatedPatients)
	assert.Len(t, res.SampleFiles, 4)
}

func TestScanFolder_OptionsAndLimits(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 15; i++ {
		write(t, root, filepath.Join("p", string(rune('a'+i))+".jpg"), time.Time{})
	}
	write(t, root, "top.pdf", time.Time{})

	s := newScanner()
	res, err := s.ScanFolder(context.Background(), root, ScanOptions{Recursive: true, MaxFiles: 12})
	require.NoError(t, err)
	assert.Equal(t, 12, res.TotalFiles)
	assert.Len(t, res.SampleFiles, 10)

	res, err = s.ScanFolder(context.Background(), root, ScanOptions{Recursive: false})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalFiles)

	res, err = s.ScanFolder(context.Background(), root, ScanOptions{Recursive: true, Extensions: []string{"PDF"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{".pdf": 1}, res.FilesByType)
}

func TestScanFolder_MissingRoot(t *testing.T) {
	res, err := newScanner().ScanFolder(context.Background(), "/does/not/exist", ScanOptions{Recursive: true})
	require.NoError(t, err)
	assert.Zero(t, res.TotalFiles)
	assert.Zero(t, res.EstimatedPatients)
	assert.Empty(t, res.SampleFiles)
}

func TestPatientKey(t *testing.T) {
	assert.Equal(t, "dupont_jean_pat001", PatientKey("/x/Folder/DUPONT_Jean_PAT001_19800101_OD.jpg", constants.ZEISS))
	assert.Equal(t, "folder", PatientKey("/x/Folder/DUPONT_Jean.jpg", constants.ZEISS))
	assert.Equal(t, "martin paul", PatientKey("/x/ Martin Paul /DUPONT_Jean_PAT001.jpg", constants.SOLIX))
	assert.Equal(t, "folder", PatientKey("/x/FOLDER/DUPONT_Jean_PAT001.jpg", constants.GENERIC))
}

func TestFilesForImport(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	write(t, root, "old/a.jpg", base)
	write(t, root, "recent/a.jpg", base.Add(2*time.Hour))
	write(t, root, "recent/b.jpg", base.Add(3*time.Hour))
	write(t, root, "recent/c.jpg", base.Add(time.Hour))
	write(t, root, "middle/a.pdf", base.Add(90*time.Minute))

	groups, err := newScanner().FilesForImport(context.Background(), root, constants.GENERIC, ImportOptions{
		MaxPatients:        2,
		MaxFilesPerPatient: 2,
		Recursive:          true,
	})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "recent", groups[0].PatientKey)
	assert.Equal(t, 3, groups[0].TotalFiles)
	require.Len(t, groups[0].Files, 2)
	assert.Equal(t, "b.jpg", groups[0].Files[0].Name)
	assert.Equal(t, "a.jpg", groups[0].Files[1].Name)
	assert.True(t, groups[0].LatestFileDate.Equal(base.Add(3*time.Hour)))

	assert.Equal(t, "middle", groups[1].PatientKey)
	assert.Equal(t, ".pdf", groups[1].Files[0].Ext)
}

func TestFilesForImport_ZeissKeysAndMissingRoot(t *testing.T) {
	root := t.TempDir()
	write(t, root, "export/DUPONT_Jean_P1_19800101_OD.jpg", time.Time{})
	write(t, root, "export/DUPONT_Jean_P1_19800101_OS.jpg", time.Time{})
	write(t, root, "export/MARTIN_Luc_P2_19700101_OD.jpg", time.Time{})

	s := newScanner()
	groups, err := s.FilesForImport(context.Background(), root, constants.ZEISS, ImportOptions{Recursive: true})
	require.NoError(t, err)
	keys := map[string]int{}
	for _, g := range groups {
		keys[g.PatientKey] = g.TotalFiles
	}
	assert.Equal(t, map[string]int{"dupont_jean_p1": 2, "martin_luc_p2": 1}, keys)

	groups, err = s.FilesForImport(context.Background(), filepath.Join(root, "nope"), constants.ZEISS, ImportOptions{})
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestScanFolder_Cancelled(t *testing.T) {
	root := t.TempDir()
	write(t, root, "p/a.jpg", time.Time{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newScanner().ScanFolder(ctx, root, ScanOptions{Recursive: true})
	assert.ErrorIs(t, err, context.Canceled)
}
