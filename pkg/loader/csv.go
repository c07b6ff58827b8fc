package loader

import (
	"context"
	"errors"
	"fmt"
	"os"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"
	"github.com/rocketlaunchr/dataframe-go/imports"
)

// Error definitions
var (
	ErrEmptyFile = errors.New("empty CSV file")
	ErrNilFrame  = errors.New("nil dataframe")
)

// LoadCSV reads a CSV file whose first row is the header.
// Column types are inferred and empty cells become nil.
func LoadCSV(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	empty := ""
	df, err := imports.LoadFromCSV(ctx, file, imports.CSVLoadOptions{
		InferDataTypes: true,
		NilValue:       &empty,
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if df == nil || len(df.Series) == 0 {
		return nil, ErrEmptyFile
	}

	return df, nil
}

// SaveCSV writes df as CSV with a header row. Nil values are written as empty
// cells so LoadCSV reads them back as nil.
func SaveCSV(ctx context.Context, path string, df *dataframe.DataFrame) error {
	if df == nil {
		return ErrNilFrame
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	empty := ""
	if err := exports.ExportToCSV(ctx, file, df, exports.CSVExportOptions{
		NullString: &empty,
		Separator:  ',',
	}); err != nil {
		file.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	return file.Close()
}
