package loader

import (
	"context"
	"errors"
	"fmt"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/xitongsys/parquet-go-source/local"
)

// ErrEmptyParquet is returned for a Parquet file without columns.
var ErrEmptyParquet = errors.New("empty Parquet file")

// LoadParquet reads a local Parquet file.
func LoadParquet(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fr.Close()

	df, err := imports.LoadFromParquet(ctx, fr)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if df == nil || len(df.Series) == 0 {
		return nil, ErrEmptyParquet
	}

	return df, nil
}
