package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/dfagent/internal/testutil"
)

func TestLoadCSV_Sales(t *testing.T) {
	df, err := LoadCSV(context.Background(), testutil.TempCSV(t, testutil.SalesCSV()))
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	if got := df.Names(); !reflect.DeepEqual(got, []string{"price", "quantity", "category"}) {
		t.Errorf("columns = %v", got)
	}
	if df.NRows() != 5 {
		t.Errorf("expected 5 rows, got %d", df.NRows())
	}

	if got := testutil.Column(t, df, "price"); !reflect.DeepEqual(got, []any{10.5, 20.0, 5.0, 30.0, 15.0}) {
		t.Errorf("price = %v", got)
	}
	if got := testutil.Column(t, df, "quantity"); !reflect.DeepEqual(got, []any{int64(5), int64(15), int64(3), int64(20), int64(8)}) {
		t.Errorf("quantity = %v", got)
	}
}

func TestLoadCSV_TypeDetection(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want dataframe.Series
	}{
		{"int64", "x\n1\n2\n-3", &dataframe.SeriesInt64{}},
		{"float64", "x\n1.5\n2\n-0.25", &dataframe.SeriesFloat64{}},
		{"string", "x\nalice\nbob", &dataframe.SeriesString{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			df, err := LoadCSV(context.Background(), testutil.TempCSV(t, tt.csv))
			if err != nil {
				t.Fatalf("LoadCSV failed: %v", err)
			}
			if reflect.TypeOf(df.Series[0]) != reflect.TypeOf(tt.want) {
				t.Errorf("expected %T, got %T", tt.want, df.Series[0])
			}
		})
	}
}

func TestLoadCSV_EmptyCellsAreNil(t *testing.T) {
	df, err := LoadCSV(context.Background(), testutil.TempCSV(t, testutil.DirtyCSV()))
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if v := testutil.Column(t, df, "price")[1]; v != nil {
		t.Errorf("expected nil price in row 1, got %v", v)
	}
	if v := testutil.Column(t, df, "quantity")[3]; v != nil {
		t.Errorf("expected nil quantity in row 3, got %v", v)
	}
	if _, ok := df.Series[0].(*dataframe.SeriesFloat64); !ok {
		t.Errorf("expected price to stay float64 around the gap, got %s", df.Series[0].Type())
	}
	if _, ok := df.Series[1].(*dataframe.SeriesInt64); !ok {
		t.Errorf("expected quantity to stay int64 around the gap, got %s", df.Series[1].Type())
	}
}

func TestLoadCSV_Errors(t *testing.T) {
	if _, err := LoadCSV(context.Background(), testutil.TempCSV(t, "")); err == nil {
		t.Error("expected error for empty file")
	}
	if _, err := LoadCSV(context.Background(), "/nonexistent/file.csv"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadCSV_ManyRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,value\n")
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&b, "%d,%d\n", i, i*10)
	}

	df, err := LoadCSV(context.Background(), testutil.TempCSV(t, b.String()))
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if df.NRows() != 1000 {
		t.Errorf("expected 1000 rows, got %d", df.NRows())
	}
}

func TestSaveCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	in := testutil.MakeDirtyFrame()

	if err := SaveCSV(context.Background(), path, in); err != nil {
		t.Fatalf("SaveCSV failed: %v", err)
	}
	out, err := LoadCSV(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	for _, name := range []string{"price", "quantity"} {
		if got, want := testutil.Column(t, out, name), testutil.Column(t, in, name); !reflect.DeepEqual(got, want) {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestSaveCSV_NilFrame(t *testing.T) {
	err := SaveCSV(context.Background(), filepath.Join(t.TempDir(), "x.csv"), nil)
	if !errors.Is(err, ErrNilFrame) {
		t.Errorf("expected ErrNilFrame, got %v", err)
	}
}
