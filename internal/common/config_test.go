package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "fra", cfg.OCR.Lang)
	assert.Equal(t, "gosseract", cfg.OCR.Engine)
	assert.InDelta(t, 0.6, cfg.OCR.ConfidenceThreshold, 1e-9)
	assert.Equal(t, "/tmp/medflow_thumbnails", cfg.Thumbnail.CacheDir)
	assert.Equal(t, 720, cfg.Thumbnail.Sizes["medium"])
	assert.Equal(t, 120, cfg.Thumbnail.Sizes["small"])
	assert.Equal(t, 1600, cfg.Thumbnail.Sizes["large"])
	assert.InDelta(t, 0.85, cfg.Match.AutoLinkThreshold, 1e-9)
	assert.InDelta(t, 0.60, cfg.Match.SuggestThreshold, 1e-9)
	assert.Equal(t, "http://localhost:5001", cfg.MedFlow.BackendURL)
	assert.Equal(t, time.Hour, cfg.Batch.ResultTTL)
	assert.Equal(t, "/tmp/medflow_mounts/ZEISS_RETINO", cfg.Shares["zeiss"])
	assert.Equal(t, []string{".pdf"}, cfg.ExtensionSets().PDF)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OCR_LANG", "eng")
	t.Setenv("THUMBNAIL_CACHE_DIR", "/var/cache/thumbs")
	t.Setenv("MEDFLOW_BACKEND_URL", "http://emr.local:5001")
	t.Setenv("BATCH_RESULT_TTL", "30m")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "eng", cfg.OCR.Lang)
	assert.Equal(t, "/var/cache/thumbs", cfg.Thumbnail.CacheDir)
	assert.Equal(t, "http://emr.local:5001", cfg.MedFlow.BackendURL)
	assert.Equal(t, 30*time.Minute, cfg.Batch.ResultTTL)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocr.yaml")
	yaml := "ocr:\n  engine: tesseract-cli\nthumbnail:\n  default_size: large\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "tesseract-cli", cfg.OCR.Engine)
	assert.Equal(t, "large", cfg.Thumbnail.DefaultSize)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, CodeConfig, CodeOf(err))
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	bad := *cfg
	bad.OCR.Engine = "paddle"
	err = bad.Validate()
	require.Error(t, err)
	assert.Equal(t, CodeConfig, CodeOf(err))
	assert.Contains(t, err.Error(), "Engine")

	bad = *cfg
	bad.Match.SuggestThreshold = 0.9
	require.Error(t, bad.Validate())

	bad = *cfg
	bad.Thumbnail.DefaultSize = "huge"
	require.Error(t, bad.Validate())

	bad = *cfg
	bad.MedFlow.BackendURL = "not a url"
	require.Error(t, bad.Validate())
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, l)

	l, err = NewLogger(LogConfig{Level: "bogus", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}
