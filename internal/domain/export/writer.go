package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Write renders the report in the requested format.
func Write(w io.Writer, rep *Report, f Format) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, rep)
	case FormatXLSX:
		return WriteXLSX(w, rep)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// WriteCSV writes every field double-quoted, with embedded quotes doubled.
// Fields a spreadsheet would evaluate as a formula get a leading '.
// Rows end in CRLF.
func WriteCSV(w io.Writer, rep *Report) error {
	bw := bufio.NewWriter(w)
	if err := writeCSVLine(bw, rep.Header); err != nil {
		return err
	}
	for _, row := range rep.Rows {
		if err := writeCSVLine(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeCSVLine(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(neutralize(f), `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}

func neutralize(f string) string {
	if f != "" && strings.ContainsRune("=+-@\t\r", rune(f[0])) {
		return "'" + f
	}
	return f
}

// WriteXLSX writes a single-sheet workbook with a frozen, bold header row.
func WriteXLSX(w io.Writer, rep *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(rep.Role)
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("delete default sheet: %w", err)
		}
	}
	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("find sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := setRow(f, sheet, 1, rep.Header); err != nil {
		return err
	}
	if len(rep.Header) > 0 {
		last, err := excelize.CoordinatesToCellName(len(rep.Header), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("set header style: %w", err)
		}
		lastCol, err := excelize.ColumnNumberToName(len(rep.Header))
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	for i, row := range rep.Rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func sheetName(role Role) string {
	switch role {
	case RoleFrontOffice:
		return "Front Office"
	case RoleDoctor:
		return "Doctor"
	case RoleCounseling:
		return "Counseling"
	case RoleAnalytics:
		return "Analytics"
	}
	return "Sheet1"
}
