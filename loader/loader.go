// Package loader ingests CSV files of numeric features and task labels into
// sharded datasets. Gzip-compressed input (.gz) is handled transparently.
//
// Featurization is out of scope; feature columns must already be numeric.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/chemgo"
)

var (
	// ErrNoFeatureColumns is returned when no feature columns are configured.
	ErrNoFeatureColumns = errors.New("loader: no feature columns")

	// ErrNoTaskColumns is returned when no task columns are configured.
	ErrNoTaskColumns = errors.New("loader: no task columns")

	// ErrMissingColumn is returned when a configured column is absent from
	// the CSV header.
	ErrMissingColumn = errors.New("loader: column not in header")

	// ErrEmptyInput is returned when the CSV holds no data rows.
	ErrEmptyInput = errors.New("loader: no data rows")
)

// Config describes how to map CSV columns onto a dataset.
type Config struct {
	// IDColumn names the column holding row identifiers. When empty, ids
	// are the zero-based row index.
	IDColumn string

	// FeatureColumns name the numeric feature columns, in feature order.
	FeatureColumns []string

	// Tasks name the label columns, in task order. An empty or
	// non-numeric cell means the row is unlabeled for that task: its
	// label becomes 0 and its weight 0.
	Tasks []string

	// ShardSize is the target rows per shard of the written dataset.
	// Values <= 0 produce a single shard.
	ShardSize int

	// Options are passed through to dataset construction (compression,
	// logging).
	Options []chemgo.Option
}

// CSVLoader loads delimited files into datasets.
type CSVLoader struct {
	cfg Config
}

// NewCSVLoader validates the column configuration and returns a loader.
func NewCSVLoader(cfg Config) (*CSVLoader, error) {
	if len(cfg.FeatureColumns) == 0 {
		return nil, ErrNoFeatureColumns
	}
	if len(cfg.Tasks) == 0 {
		return nil, ErrNoTaskColumns
	}
	return &CSVLoader{cfg: cfg}, nil
}

// Load reads the CSV at path and writes a sharded dataset under dir.
func (l *CSVLoader) Load(path, dir string) (*chemgo.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("loader: gunzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	a, err := l.read(r)
	if err != nil {
		return nil, err
	}

	opts := append([]chemgo.Option{chemgo.WithShardSize(l.cfg.ShardSize)}, l.cfg.Options...)
	return chemgo.FromArrays(dir, a.X, a.Y, a.W, a.IDs, l.cfg.Tasks, opts...)
}

// read parses the CSV body into arrays.
func (l *CSVLoader) read(r io.Reader) (*chemgo.Arrays, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("loader: read header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[strings.TrimSpace(name)] = i
	}

	featIdx, err := resolveColumns(colIdx, l.cfg.FeatureColumns)
	if err != nil {
		return nil, err
	}
	taskIdx, err := resolveColumns(colIdx, l.cfg.Tasks)
	if err != nil {
		return nil, err
	}

	idIdx := -1
	if l.cfg.IDColumn != "" {
		i, ok := colIdx[l.cfg.IDColumn]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, l.cfg.IDColumn)
		}
		idIdx = i
	}

	var (
		xData, yData, wData []float64
		ids                 []string
		row                 int
	)

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("loader: read row %d: %w", row, err)
		}

		for _, i := range featIdx {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("loader: row %d column %s: %w", row, header[i], err)
			}
			xData = append(xData, v)
		}

		for _, i := range taskIdx {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				// Unlabeled for this task.
				yData = append(yData, 0)
				wData = append(wData, 0)
				continue
			}
			yData = append(yData, v)
			wData = append(wData, 1)
		}

		if idIdx >= 0 {
			// ReuseRecord means field strings alias a buffer that the
			// next Read overwrites.
			ids = append(ids, strings.Clone(rec[idIdx]))
		} else {
			ids = append(ids, strconv.Itoa(row))
		}
		row++
	}

	if row == 0 {
		return nil, ErrEmptyInput
	}

	return &chemgo.Arrays{
		X:   mat.NewDense(row, len(featIdx), xData),
		Y:   mat.NewDense(row, len(taskIdx), yData),
		W:   mat.NewDense(row, len(taskIdx), wData),
		IDs: ids,
	}, nil
}

func resolveColumns(colIdx map[string]int, names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, name := range names {
		idx, ok := colIdx[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		out[i] = idx
	}
	return out, nil
}
