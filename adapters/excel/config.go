package excel

import (
	"path/filepath"
	"strings"

	"panelfit/domain/panel"
)

// FileType is the container format of a table file.
type FileType string

const (
	FileTypeCSV     FileType = "csv"
	FileTypeCSVGzip FileType = "csv.gz"
	FileTypeCSVZstd FileType = "csv.zst"
	FileTypeXLSX    FileType = "xlsx"
)

// DetectFileType infers the format from the file name; unknown extensions are CSV.
func DetectFileType(path string) FileType {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".gz"):
		return FileTypeCSVGzip
	case strings.HasSuffix(name, ".zst"):
		return FileTypeCSVZstd
	case strings.HasSuffix(name, ".xlsx"):
		return FileTypeXLSX
	default:
		return FileTypeCSV
	}
}

// ReaderConfig holds configuration for the panel table source
type ReaderConfig struct {
	FilePath      string       `json:"file_path"`
	Sheet         string       `json:"sheet"` // xlsx only; default is the first sheet
	Schema        panel.Schema `json:"schema"`
	DropNonFinite bool         `json:"drop_non_finite"`
}

// DefaultReaderConfig returns the ten-variable schema with cleaning enabled
func DefaultReaderConfig(path string) ReaderConfig {
	return ReaderConfig{
		FilePath:      path,
		Schema:        panel.DefaultSchema(),
		DropNonFinite: true,
	}
}
