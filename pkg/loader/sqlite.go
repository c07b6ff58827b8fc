package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/imports"
	_ "modernc.org/sqlite"
)

// SQLite-specific errors
var (
	ErrNoTable    = errors.New("no table given")
	ErrEmptyQuery = errors.New("query returned no columns")
)

// LoadSQLiteTable reads every row of table from the SQLite database at path.
func LoadSQLiteTable(ctx context.Context, path, table string) (*dataframe.DataFrame, error) {
	if table == "" {
		return nil, ErrNoTable
	}
	return LoadSQLite(ctx, path, "SELECT * FROM "+quoteIdent(table))
}

// LoadSQLite runs query against the SQLite database at path and returns the
// result set. Declared column types pick the series types: INTEGER columns
// become int64, REAL columns float64, everything else string.
func LoadSQLite(ctx context.Context, path, query string, args ...any) (*dataframe.DataFrame, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	dictate, err := sqliteTypes(ctx, db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	df, err := imports.LoadFromSQL(ctx, db, &imports.SQLLoadOptions{
		Database:        imports.PostgreSQL,
		Query:           query,
		DictateDataType: dictate,
	}, args...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if df == nil || len(df.Series) == 0 {
		return nil, ErrEmptyQuery
	}
	return df, nil
}

// sqliteTypes maps the result columns of query to the types the importer
// understands. SQLite reports declared types the importer does not know, such
// as INTEGER and REAL.
func sqliteTypes(ctx context.Context, db *sql.DB, query string, args ...any) (map[string]interface{}, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, ErrEmptyQuery
	}

	dictate := make(map[string]interface{}, len(cols))
	for _, ct := range cols {
		typ := strings.ToUpper(ct.DatabaseTypeName())
		switch {
		case strings.Contains(typ, "INT"):
			dictate[ct.Name()] = int64(0)
		case strings.Contains(typ, "REAL"), strings.Contains(typ, "FLOA"),
			strings.Contains(typ, "DOUB"), strings.Contains(typ, "NUMERIC"), strings.Contains(typ, "DECIMAL"):
			dictate[ct.Name()] = float64(0)
		default:
			dictate[ct.Name()] = ""
		}
	}
	return dictate, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
