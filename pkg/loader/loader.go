// Package loader reads datasets into dataframes and writes them back out.
//
// Supported inputs are CSV, JSON Lines, Parquet and SQLite. CSV and JSON Lines
// can also be written.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// ErrUnsupportedFormat is returned for a file extension no loader handles.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Format identifies a file format by extension.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
	FormatSQLite  Format = "sqlite"
)

// DetectFormat returns the format implied by the extension of path. A
// "#table" suffix is ignored.
func DetectFormat(path string) (Format, error) {
	path, _ = splitTable(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON, nil
	case ".parquet":
		return FormatParquet, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
}

// Load reads path with the loader its extension selects. SQLite paths name
// the table after a '#', as in "sales.db#orders".
func Load(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		return LoadCSV(ctx, path)
	case FormatJSON:
		return LoadJSON(ctx, path)
	case FormatParquet:
		return LoadParquet(ctx, path)
	default:
		file, table := splitTable(path)
		if table == "" {
			return nil, fmt.Errorf("%w: %q", ErrNoTable, path)
		}
		return LoadSQLiteTable(ctx, file, table)
	}
}

// Save writes df to path in the format its extension selects.
func Save(ctx context.Context, path string, df *dataframe.DataFrame) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}

	switch format {
	case FormatCSV:
		return SaveCSV(ctx, path, df)
	case FormatJSON:
		return SaveJSON(ctx, path, df)
	}
	return fmt.Errorf("%w: cannot write %s", ErrUnsupportedFormat, format)
}

func splitTable(path string) (file, table string) {
	if i := strings.LastIndexByte(path, '#'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}
