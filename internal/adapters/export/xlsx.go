// Package export renders finished tournaments as spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/okian/duelkit/internal/domain/bracket"
	"github.com/okian/duelkit/internal/domain/names"
)

// Layout of the workbook.
const (
	SheetName   = "Results"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	fileExt     = ".xlsx"
	dirPerm     = 0o755
	matchWidth  = 36
	resultWidth = 20
)

// Header is the first row of the sheet.
var Header = []string{"Match", "Result"}

// Write renders rows as a single-sheet workbook.
func Write(w io.Writer, rows []bracket.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := setRow(f, 1, Header[0], Header[1]); err != nil {
		return err
	}
	for i, r := range rows {
		if err := setRow(f, i+2, r.Match, r.Result); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "B1", style); err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "A", matchWidth); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "B", resultWidth); err != nil {
		return fmt.Errorf("column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, cells ...string) error {
	axis, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(cells))
	for i, c := range cells {
		vals[i] = c
	}
	if err := f.SetSheetRow(SheetName, axis, &vals); err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	return nil
}

// Bytes renders t to memory.
func Bytes(t *bracket.Tournament) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, t.ExportRows()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Path returns <root>/guilds/<guild>/xlsx/tournaments/<name>.xlsx.
func Path(root string, guildID uint64, name string) (string, error) {
	if err := names.ValidateKey(name); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	return filepath.Join(root, "guilds", strconv.FormatUint(guildID, 10), "xlsx", "tournaments", name+fileExt), nil
}

// Key returns the object key used when the file is uploaded.
func Key(guildID uint64, name string) string {
	return "guilds/" + strconv.FormatUint(guildID, 10) + "/xlsx/tournaments/" + name + fileExt
}

// SaveFile writes t under root and returns the file path and its contents.
func SaveFile(root string, guildID uint64, t *bracket.Tournament) (string, []byte, error) {
	p, err := Path(root, guildID, t.Name)
	if err != nil {
		return "", nil, err
	}
	data, err := Bytes(t)
	if err != nil {
		return "", nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), dirPerm); err != nil {
		return "", nil, fmt.Errorf("create export dir: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", nil, fmt.Errorf("write %s: %w", p, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return "", nil, fmt.Errorf("write %s: %w", p, err)
	}
	return p, data, nil
}

// ReadRows parses a workbook written by Write, skipping the header.
func ReadRows(r io.Reader) ([]bracket.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", SheetName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", SheetName)
	}

	out := make([]bracket.Row, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var r bracket.Row
		if len(row) > 0 {
			r.Match = row[0]
		}
		if len(row) > 1 {
			r.Result = row[1]
		}
		out = append(out, r)
	}
	return out, nil
}
