package excel

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/xuri/excelize/v2"

	"panelfit/domain/core"
	"panelfit/domain/panel"
	"panelfit/domain/results"
	"panelfit/internal"
	"panelfit/internal/errors"
)

// WriteTable writes a header and rows to path in the format its extension
// names. XLSX cells that parse as numbers are stored as numbers.
func WriteTable(path, sheet string, header []string, rows [][]string) error {
	switch DetectFileType(path) {
	case FileTypeXLSX:
		return writeExcel(path, sheet, header, rows)
	default:
		return writeCSV(path, header, rows)
	}
}

func writeCSV(path string, header []string, rows [][]string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return errors.IOError(path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.IOError(path, cerr)
		}
	}()

	var dst io.WriteCloser
	switch DetectFileType(path) {
	case FileTypeCSVGzip:
		dst = gzip.NewWriter(file)
	case FileTypeCSVZstd:
		if dst, err = zstd.NewWriter(file); err != nil {
			return errors.IOError(path, err)
		}
	}

	var out io.Writer = file
	if dst != nil {
		out = dst
	}
	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return errors.IOError(path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return errors.IOError(path, err)
	}
	if dst != nil {
		if err := dst.Close(); err != nil {
			return errors.IOError(path, err)
		}
	}
	return nil
}

func writeExcel(path, sheet string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return errors.Wrap(err, "naming sheet")
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return errors.Wrap(err, "opening sheet writer")
	}
	if err := sw.SetRow("A1", toCells(header)); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "addressing row")
		}
		if err := sw.SetRow(cell, toCells(row)); err != nil {
			return errors.Wrapf(err, "writing row %d", i+2)
		}
	}
	if err := sw.Flush(); err != nil {
		return errors.Wrap(err, "flushing sheet")
	}
	if err := f.SaveAs(path); err != nil {
		return errors.IOError(path, err)
	}
	return nil
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, s := range row {
		cells[i] = s
		if n, err := strconv.Atoi(s); err == nil {
			cells[i] = n
		} else if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			cells[i] = v
		}
	}
	return cells
}

// FileStore writes run outputs to files. It implements ports.RunStore.
type FileStore struct {
	ResultsPath     string
	DiagnosticsPath string // empty disables the diagnostics file
	logger          *internal.Logger
}

// NewFileStore creates a file-backed store; a nil logger uses the default logger.
func NewFileStore(resultsPath, diagnosticsPath string, logger *internal.Logger) *FileStore {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &FileStore{ResultsPath: resultsPath, DiagnosticsPath: diagnosticsPath, logger: logger}
}

// WriteResults writes the result table.
func (s *FileStore) WriteResults(ctx context.Context, runID core.RunID, schema panel.Schema, records []results.ResultRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.Row()
	}
	if err := WriteTable(s.ResultsPath, "results", results.Header(schema), rows); err != nil {
		return err
	}
	s.logger.Info("[FileStore] run %s: wrote %d result records to %s", runID, len(records), s.ResultsPath)
	return nil
}

// WriteDiagnostics writes one row per skipped unit.
func (s *FileStore) WriteDiagnostics(ctx context.Context, runID core.RunID, diags []results.Diagnostic) error {
	if s.DiagnosticsPath == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := make([][]string, len(diags))
	for i, d := range diags {
		rows[i] = d.Row()
	}
	if err := WriteTable(s.DiagnosticsPath, "diagnostics", results.DiagnosticHeader(), rows); err != nil {
		return err
	}
	s.logger.Info("[FileStore] run %s: wrote %d diagnostics to %s", runID, len(diags), s.DiagnosticsPath)
	return nil
}
