package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/xuri/excelize/v2"

	"panelfit/domain/core"
	"panelfit/domain/panel"
	"panelfit/internal"
	"panelfit/internal/errors"
	"panelfit/ports"
)

// PanelReader reads the panel table from CSV (plain, gzip or zstd) or XLSX
// files. It implements ports.PanelReader.
type PanelReader struct {
	config   ReaderConfig
	fileType FileType
	logger   *internal.Logger
	stats    ports.ReadStats
}

// NewPanelReader creates a reader; a nil logger uses the default logger.
func NewPanelReader(config ReaderConfig, logger *internal.Logger) *PanelReader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &PanelReader{
		config:   config,
		fileType: DetectFileType(config.FilePath),
		logger:   logger,
	}
}

// Stats reports the row counts of the last ReadPanel call.
func (r *PanelReader) Stats() ports.ReadStats {
	return r.stats
}

// ReadPanel loads and types the whole table.
func (r *PanelReader) ReadPanel(ctx context.Context) (*panel.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.logger.Debug("[PanelReader] Starting to read %s file: %s", r.fileType, r.config.FilePath)

	if _, err := os.Stat(r.config.FilePath); err != nil {
		return nil, errors.IOError(r.config.FilePath, err)
	}

	readStart := time.Now()
	raw, err := r.ReadRaw()
	if err != nil {
		return nil, err
	}
	r.logger.Debug("[PanelReader] %s file read in %.2fms (%d rows)",
		r.fileType, float64(time.Since(readStart).Nanoseconds())/1e6, len(raw.Rows))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, dropped, err := Decode(raw, r.config.Schema, r.config.DropNonFinite)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", r.config.FilePath)
	}
	r.stats = ports.ReadStats{RowsRead: len(raw.Rows), RowsDropped: dropped}
	if dropped > 0 {
		r.logger.Info("[PanelReader] dropped %d of %d rows with missing or non-finite values", dropped, len(raw.Rows))
	}
	return table, nil
}

// ReadRaw decodes the file into string cells without typing.
func (r *PanelReader) ReadRaw() (*RawTable, error) {
	switch r.fileType {
	case FileTypeXLSX:
		return r.readExcel()
	default:
		return r.readCSV()
	}
}

func (r *PanelReader) readExcel() (*RawTable, error) {
	f, err := excelize.OpenFile(r.config.FilePath)
	if err != nil {
		return nil, errors.IOError(r.config.FilePath, err)
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.InvalidInput("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err, "failed to read sheet "+sheet)
	}
	return newRawTable(rows)
}

func (r *PanelReader) readCSV() (*RawTable, error) {
	file, err := os.Open(r.config.FilePath)
	if err != nil {
		return nil, errors.IOError(r.config.FilePath, err)
	}
	defer file.Close()

	var src io.Reader = file
	switch r.fileType {
	case FileTypeCSVGzip:
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, errors.IOError(r.config.FilePath, err)
		}
		defer gz.Close()
		src = gz
	case FileTypeCSVZstd:
		zr, err := zstd.NewReader(file)
		if err != nil {
			return nil, errors.IOError(r.config.FilePath, err)
		}
		defer zr.Close()
		src = zr
	}

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err, "failed to read CSV file")
	}
	return newRawTable(rows)
}

func newRawTable(rows [][]string) (*RawTable, error) {
	if len(rows) == 0 {
		return nil, errors.InvalidInput("file has no header row")
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return &RawTable{Headers: headers, Rows: rows[1:]}, nil
}

// Decode types a raw table against the schema. Missing identifier or
// variable columns fail the whole read. Empty cells and null markers become
// NaN; with dropNonFinite, rows holding any NaN or Inf are removed and counted.
func Decode(raw *RawTable, schema panel.Schema, dropNonFinite bool) (*panel.Table, int, error) {
	idx := raw.index()
	for _, name := range append([]string{ColumnCountry, ColumnPeriod}, schema.Variables()...) {
		if _, ok := idx[name]; !ok {
			return nil, 0, errors.WithCode(errors.CodeInvalidInput, core.NewMissingVariableError(name), "panel header incomplete")
		}
	}

	cell := func(row []string, name string) string {
		i := idx[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	table := &panel.Table{Schema: schema, Rows: make([]panel.Observation, 0, len(raw.Rows))}
	dropped := 0
	for n, row := range raw.Rows {
		line := n + 2 // 1-based, after the header
		if isBlank(row) {
			continue
		}
		period, err := parsePeriod(cell(row, ColumnPeriod))
		if err != nil {
			return nil, 0, errors.Newf(errors.CodeInvalidInput, "row %d: %v", line, err)
		}
		obs := panel.Observation{
			Country: cell(row, ColumnCountry),
			Period:  period,
			Inputs:  make([]float64, len(schema.Inputs)),
			Outputs: make([]float64, len(schema.Outputs)),
		}
		for j, name := range schema.Inputs {
			if obs.Inputs[j], err = parseValue(cell(row, name)); err != nil {
				return nil, 0, errors.Newf(errors.CodeInvalidInput, "row %d, column %q: %v", line, name, err)
			}
		}
		for j, name := range schema.Outputs {
			if obs.Outputs[j], err = parseValue(cell(row, name)); err != nil {
				return nil, 0, errors.Newf(errors.CodeInvalidInput, "row %d, column %q: %v", line, name, err)
			}
		}
		if dropNonFinite && !obs.Finite() {
			dropped++
			continue
		}
		table.Rows = append(table.Rows, obs)
	}
	return table, dropped, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parsePeriod(s string) (int, error) {
	if p, err := strconv.ParseInt(s, 10, 32); err == nil {
		return int(p), nil
	}
	// Spreadsheets often store integers as 3.0.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("period %q is not an integer", s)
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("period %q is out of range", s)
	}
	return int(f), nil
}

func parseValue(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "", "null", "na", "n/a", "none":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return v, nil
}
