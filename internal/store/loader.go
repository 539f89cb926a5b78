package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/incidentlens/internal/model"
	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"

	_ "modernc.org/sqlite"
)

// Format identifies a dataset file type
type Format string

const (
	FormatXLSX   Format = "xlsx"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

var errNoHeader = errors.New("dataset has no header row")

// Options selects what to read inside a dataset file
type Options struct {
	Sheet string // xlsx sheet name, "" = first sheet
	Table string // sqlite table name
}

// DetectFormat picks the loader from the file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("unsupported dataset extension %q (supported: .xlsx, .xlsm, .csv, .db, .sqlite, .sqlite3)", filepath.Ext(path))
	}
}

// Load reads the dataset at path. Every failure is returned as a
// *model.LoadError so callers can report it as service unavailable.
//
// xlsx and csv files are read through fs; SQLite files are opened
// read-only from the OS filesystem because the driver needs a real path.
func Load(ctx context.Context, fs afero.Fs, path string, opts Options) (*Table, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, &model.LoadError{Path: path, Err: err}
	}

	if _, err := fs.Stat(path); err != nil {
		return nil, &model.LoadError{Path: path, Err: err}
	}

	var table *Table
	switch format {
	case FormatXLSX:
		table, err = loadXLSX(fs, path, opts.Sheet)
	case FormatCSV:
		table, err = loadCSV(fs, path)
	case FormatSQLite:
		table, err = loadSQLite(ctx, path, opts.Table)
	}
	if err != nil {
		return nil, &model.LoadError{Path: path, Err: err}
	}
	return table, nil
}

func loadXLSX(fs afero.Fs, path, sheet string) (*Table, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	book, err := excelize.OpenReader(f)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	defer func() { _ = book.Close() }()

	if sheet == "" {
		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, errNoHeader
	}

	return NewTable(path, rows[0], parseRows(rows[1:])), nil
}

func loadCSV(fs afero.Fs, path string) (*Table, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, row)
	}

	return NewTable(path, header, parseRows(rows)), nil
}

func loadSQLite(ctx context.Context, path, table string) (*Table, error) {
	if table == "" {
		return nil, fmt.Errorf("sqlite dataset needs a table name")
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	header, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var data [][]any
	for rows.Next() {
		values := make([]any, len(header))
		ptrs := make([]any, len(header))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(data)+1, err)
		}
		for i, v := range values {
			values[i] = sqlValue(v)
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return NewTable(path, header, data), nil
}

// parseRows converts text cells and drops rows with no present value
func parseRows(rows [][]string) [][]any {
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		parsed := make([]any, len(row))
		empty := true
		for i, cell := range row {
			parsed[i] = parseCell(cell)
			if parsed[i] != nil {
				empty = false
			}
		}
		if !empty {
			out = append(out, parsed)
		}
	}
	return out
}

// parseCell types a text cell: blank → absent, numeric → float64, else string
func parseCell(cell string) any {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		if model.IsAbsent(f) {
			return nil
		}
		return f
	}
	return strings.TrimRight(cell, " \t\r\n")
}

func sqlValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64:
		return float64(x)
	case float64:
		return x
	case []byte:
		return parseCell(string(x))
	case string:
		return parseCell(x)
	case bool:
		return x
	case time.Time:
		return model.ValueString(x)
	default:
		return fmt.Sprint(x)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
