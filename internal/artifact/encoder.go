package artifact

import (
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/stage-exporter/constants"
	"github.com/joseph-ayodele/stage-exporter/internal/warehouse"
)

// Encode writes a result set to w in the format named by opts.
func Encode(w io.Writer, rs *warehouse.ResultSet, opts Options) error {
	switch opts.Format {
	case constants.FormatXLSX:
		return encodeXLSX(w, rs, opts)
	case constants.FormatCSV, "":
		return encodeCSV(w, rs, opts)
	default:
		return fmt.Errorf("unsupported artifact format: %s", opts.Format)
	}
}

func encodeCSV(w io.Writer, rs *warehouse.ResultSet, opts Options) error {
	cw := csv.NewWriter(w)
	if opts.Delimiter != "" {
		// The delimiter is one code point, which may span multiple bytes.
		d, _ := utf8.DecodeRuneInString(opts.Delimiter)
		cw.Comma = d
	}
	if opts.Header {
		if err := cw.Write(rs.Columns); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	for _, row := range rs.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func encodeXLSX(w io.Writer, rs *warehouse.ResultSet, opts Options) error {
	f := excelize.NewFile()
	sheet := opts.Sheet
	if sheet == "" {
		sheet = DefaultOptions().Sheet
	}
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// Drop the default sheet if a custom one replaced it.
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	row := 1
	if opts.Header {
		for i, col := range rs.Columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, col)
		}
		row++
	}
	for _, r := range rs.Rows {
		for i, v := range r {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write xlsx bytes: %w", err)
	}
	return nil
}
