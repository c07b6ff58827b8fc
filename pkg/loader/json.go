package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"
	"github.com/rocketlaunchr/dataframe-go/imports"
)

// ErrEmptyJSON is returned for a JSON file without rows.
var ErrEmptyJSON = errors.New("empty JSON file")

// LoadJSON reads a JSON Lines file: one object per line, where the first row
// fixes the columns. Column types are inferred.
func LoadJSON(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyJSON
	}

	df, err := imports.LoadFromJSON(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if df == nil || len(df.Series) == 0 {
		return nil, ErrEmptyJSON
	}

	return df, nil
}

// SaveJSON writes df as JSON Lines. Nil values are written as null.
func SaveJSON(ctx context.Context, path string, df *dataframe.DataFrame) error {
	if df == nil {
		return ErrNilFrame
	}

	var buf bytes.Buffer
	if err := exports.ExportToJSON(ctx, &buf, df); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
