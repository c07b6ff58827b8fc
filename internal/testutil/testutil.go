// Package testutil provides fixtures shared by dfagent tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// TempCSV creates a temporary CSV file and returns its path.
// The file is automatically cleaned up when the test finishes.
func TempCSV(t *testing.T, content string) string {
	t.Helper()
	return TempFile(t, content, ".csv")
}

// TempFile creates a temporary file with the given content and extension.
func TempFile(t *testing.T, content, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+ext)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// SalesCSV returns standard test CSV content for sales data.
func SalesCSV() string {
	return `price,quantity,category
10.5,5,A
20.0,15,B
5.0,3,A
30.0,20,C
15.0,8,B`
}

// DirtyCSV returns sales data with gaps, duplicates and untidy labels.
func DirtyCSV() string {
	return `price,quantity,category
10.5,5, a
,15,B
10.5,5, a
30.0,,C
15.0,8,b`
}

// MakeSalesFrame creates a standard sales test frame.
func MakeSalesFrame() *dataframe.DataFrame {
	return dataframe.NewDataFrame(
		dataframe.NewSeriesFloat64("price", nil, 10.5, 20.0, 5.0, 30.0, 15.0),
		dataframe.NewSeriesInt64("quantity", nil, 5, 15, 3, 20, 8),
		dataframe.NewSeriesString("category", nil, "A", "B", "A", "C", "B"),
	)
}

// MakeDirtyFrame is the frame DirtyCSV loads into.
func MakeDirtyFrame() *dataframe.DataFrame {
	return dataframe.NewDataFrame(
		dataframe.NewSeriesFloat64("price", nil, 10.5, nil, 10.5, 30.0, 15.0),
		dataframe.NewSeriesInt64("quantity", nil, 5, 15, 5, nil, 8),
		dataframe.NewSeriesString("category", nil, " a", "B", " a", "C", "b"),
	)
}

// MakeSimpleFrame creates a minimal test frame with int64 columns.
func MakeSimpleFrame() *dataframe.DataFrame {
	return dataframe.NewDataFrame(
		dataframe.NewSeriesInt64("a", nil, 1, 3, 5),
		dataframe.NewSeriesInt64("b", nil, 2, 4, 6),
	)
}

// Column returns the values of a frame column, failing the test when absent.
func Column(t *testing.T, df *dataframe.DataFrame, name string) []any {
	t.Helper()
	idx, err := df.NameToColumn(name)
	if err != nil {
		t.Fatalf("column %q: %v", name, err)
	}
	s := df.Series[idx]
	vals := make([]any, s.NRows())
	for i := range vals {
		vals[i] = s.Value(i)
	}
	return vals
}

// AssertFloat64Near checks if two float64 values are approximately equal.
func AssertFloat64Near(t *testing.T, expected, actual, tolerance float64) {
	t.Helper()
	if actual < expected-tolerance || actual > expected+tolerance {
		t.Errorf("expected %.6f, got %.6f (tolerance: %.6f)", expected, actual, tolerance)
	}
}

// AssertInt64Equal checks if two int64 values are equal.
func AssertInt64Equal(t *testing.T, expected, actual int64) {
	t.Helper()
	if expected != actual {
		t.Errorf("expected %d, got %d", expected, actual)
	}
}
