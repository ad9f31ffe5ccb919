package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `smiles,f0,f1,tox_a,tox_b
CCO,1.0,2.0,1,0
CCN,3.0,4.0,,1
CCC,5.0,6.0,0,
`

func sampleConfig() Config {
	return Config{
		IDColumn:       "smiles",
		FeatureColumns: []string{"f0", "f1"},
		Tasks:          []string{"tox_a", "tox_b"},
	}
}

func writeSample(t *testing.T, name string, compress bool) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	if compress {
		gz := gzip.NewWriter(f)
		_, err = gz.Write([]byte(sampleCSV))
		require.NoError(t, err)
		require.NoError(t, gz.Close())
	} else {
		_, err = f.WriteString(sampleCSV)
		require.NoError(t, err)
	}

	return path
}

func TestCSVLoader_Load(t *testing.T) {
	l, err := NewCSVLoader(sampleConfig())
	require.NoError(t, err)

	ds, err := l.Load(writeSample(t, "sample.csv", false), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, []string{"tox_a", "tox_b"}, ds.TaskNames())

	a, err := ds.ToArrays()
	require.NoError(t, err)

	assert.Equal(t, []string{"CCO", "CCN", "CCC"}, a.IDs)
	assert.Equal(t, 5.0, a.X.At(2, 0))

	// Missing labels become weight 0.
	assert.Equal(t, 0.0, a.W.At(1, 0))
	assert.Equal(t, 0.0, a.Y.At(1, 0))
	assert.Equal(t, 1.0, a.W.At(1, 1))
	assert.Equal(t, 0.0, a.W.At(2, 1))
}

func TestCSVLoader_LoadGzip(t *testing.T) {
	l, err := NewCSVLoader(sampleConfig())
	require.NoError(t, err)

	ds, err := l.Load(writeSample(t, "sample.csv.gz", true), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
}

func TestCSVLoader_ShardSize(t *testing.T) {
	cfg := sampleConfig()
	cfg.ShardSize = 2

	l, err := NewCSVLoader(cfg)
	require.NoError(t, err)

	ds, err := l.Load(writeSample(t, "sample.csv", false), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 2, ds.NumShards())
}

func TestCSVLoader_Validation(t *testing.T) {
	_, err := NewCSVLoader(Config{Tasks: []string{"t"}})
	assert.ErrorIs(t, err, ErrNoFeatureColumns)

	_, err = NewCSVLoader(Config{FeatureColumns: []string{"f"}})
	assert.ErrorIs(t, err, ErrNoTaskColumns)

	cfg := sampleConfig()
	cfg.FeatureColumns = []string{"f0", "nope"}
	l, err := NewCSVLoader(cfg)
	require.NoError(t, err)

	_, err = l.Load(writeSample(t, "sample.csv", false), t.TempDir())
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestCSVLoader_EmptyInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, []byte("smiles,f0,f1,tox_a,tox_b\n"), 0o600))

	l, err := NewCSVLoader(sampleConfig())
	require.NoError(t, err)

	_, err = l.Load(path, t.TempDir())
	assert.ErrorIs(t, err, ErrEmptyInput)
}
