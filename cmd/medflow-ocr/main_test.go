package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/ocr-service/internal/entity"
)

func TestRun_Usage(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, run(nil, &out, &errOut))
	assert.Contains(t, errOut.String(), "usage")

	errOut.Reset()
	assert.Equal(t, 2, run([]string{"-device", "camera", "scan.jpg"}, &out, &errOut))
	assert.Contains(t, errOut.String(), "unknown device type")
	assert.Empty(t, out.String())
}

func TestRun_MissingFileReportsResult(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("THUMBNAIL_CACHE_DIR", t.TempDir())
	missing := filepath.Join(t.TempDir(), "absent.jpg")

	var out, errOut bytes.Buffer
	code := run([]string{"-device", "zeiss", missing}, &out, &errOut)
	assert.Equal(t, 1, code)

	var res entity.OCRResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "File not found: "+missing, res.Error)
	assert.Zero(t, res.FileSize)
}
