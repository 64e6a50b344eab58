package ocr

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLazyEngine_InitOnce(t *testing.T) {
	var builds int
	inner := &fakeEngine{lines: [][]Line{{{Text: "x", Confidence: 1}}}}
	lazy := NewLazyEngine(func() (Engine, error) {
		builds++
		return inner, nil
	}, zap.NewNop())

	assert.False(t, lazy.Ready())
	assert.Zero(t, builds)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = lazy.Recognize(context.Background(), nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, builds)
	assert.Equal(t, 8, inner.calls)
	assert.True(t, lazy.Ready())

	require.NoError(t, lazy.Close())
	assert.True(t, inner.closed)
	assert.False(t, lazy.Ready())
}

func TestLazyEngine_RetriesFailedInit(t *testing.T) {
	attempts := 0
	lazy := NewLazyEngine(func() (Engine, error) {
		attempts++
		if attempts == 1 {
			return nil, errBoom
		}
		return &fakeEngine{}, nil
	}, nil)

	assert.ErrorIs(t, lazy.Warm(), errBoom)
	require.NoError(t, lazy.Warm())
	require.NoError(t, lazy.Warm())
	assert.Equal(t, 2, attempts)
}

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t0\t0\t50\t10\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t0\t0\t20\t10\t90.5\tPatient:\n" +
	"5\t1\t1\t1\t1\t2\t20\t0\t20\t10\t80.5\tMarie\n" +
	"5\t1\t1\t1\t1\t3\t40\t0\t20\t10\t70.0\tCurie\n" +
	"5\t1\t1\t1\t2\t1\t0\t12\t20\t10\t60\tID:\n" +
	"5\t1\t1\t1\t2\t2\t20\t12\t20\t10\t40\tAB12345\n" +
	"5\t1\t1\t1\t3\t1\t0\t24\t20\t10\t-1\t \n"

func TestParseTSVLines(t *testing.T) {
	lines := parseTSVLines(sampleTSV)
	require.Len(t, lines, 2)
	assert.Equal(t, "Patient: Marie Curie", lines[0].Text)
	assert.InDelta(t, 0.80333, lines[0].Confidence, 1e-4)
	assert.Equal(t, "ID: AB12345", lines[1].Text)
	assert.InDelta(t, 0.5, lines[1].Confidence, 1e-9)

	assert.Empty(t, parseTSVLines(""))
}

type stubRunner struct {
	name string
	args []string
	out  []byte
	err  error
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.name = name
	s.args = args
	if len(args) > 0 {
		_, statErr := os.Stat(args[0])
		if statErr != nil {
			return nil, []byte("input missing"), statErr
		}
	}
	return s.out, nil, s.err
}

func TestCLIEngine(t *testing.T) {
	r := &stubRunner{out: []byte(sampleTSV)}
	eng := NewCLIEngine(EngineConfig{Lang: "fra+eng", TessdataDir: "/opt/tessdata"}, r, zap.NewNop())

	lines, err := eng.Recognize(context.Background(), []byte("png bytes"))
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, "tesseract", r.name)
	assert.Equal(t, []string{"stdout", "-l", "fra+eng", "--psm", "1", "--tessdata-dir", "/opt/tessdata", "tsv"}, r.args[1:])

	// temp input removed afterwards
	_, statErr := os.Stat(r.args[0])
	assert.True(t, os.IsNotExist(statErr))
	assert.NoError(t, eng.Close())
}

func TestCLIEngine_RunnerError(t *testing.T) {
	r := &stubRunner{err: errBoom}
	eng := NewCLIEngine(EngineConfig{}, r, nil)
	_, err := eng.Recognize(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, errBoom)
}
