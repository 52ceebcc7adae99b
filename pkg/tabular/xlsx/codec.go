// Package xlsx reads and writes Excel workbooks as sheetid documents.
//
// Each worksheet is a section. Data rows start below the header rows and the
// display name is read from a single configured column. The counter lives in
// one cell of the reserved worksheet. Every other cell, style and sheet is
// carried through Encode untouched.
package xlsx

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/hashicorp-forge/sheetwatch/pkg/sheetid"
)

// DefaultHeaderRows is the header depth of a workbook with a single title row.
const DefaultHeaderRows = 1

// Config describes where identifiers and the counter live in a workbook.
type Config struct {
	// NameColumn is the column letter holding display names (default: "B").
	NameColumn string

	// HeaderRows is the number of rows skipped at the top of each data sheet.
	// Zero is a valid value; use DefaultHeaderRows for the usual layout.
	HeaderRows int

	// ReservedSection is the sheet holding the counter (default: "__GLOBAL__").
	ReservedSection string

	// CounterCell is the counter's cell in the reserved sheet (default: "B1").
	CounterCell string
}

// Codec implements sheetid.DocumentCodec for .xlsx content.
type Codec struct {
	nameColumn  int
	headerRows  int
	reserved    string
	counterCell string
}

var _ sheetid.DocumentCodec = (*Codec)(nil)

// NewCodec creates a codec, applying defaults for zero values.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.NameColumn == "" {
		cfg.NameColumn = "B"
	}
	if cfg.HeaderRows < 0 {
		return nil, fmt.Errorf("header rows must not be negative, got %d", cfg.HeaderRows)
	}
	if cfg.ReservedSection == "" {
		cfg.ReservedSection = sheetid.DefaultReservedSection
	}
	if cfg.CounterCell == "" {
		cfg.CounterCell = "B1"
	}

	col, err := excelize.ColumnNameToNumber(cfg.NameColumn)
	if err != nil {
		return nil, fmt.Errorf("invalid name column %q: %w", cfg.NameColumn, err)
	}
	if _, _, err := excelize.CellNameToCoordinates(cfg.CounterCell); err != nil {
		return nil, fmt.Errorf("invalid counter cell %q: %w", cfg.CounterCell, err)
	}

	return &Codec{
		nameColumn:  col,
		headerRows:  cfg.HeaderRows,
		reserved:    cfg.ReservedSection,
		counterCell: cfg.CounterCell,
	}, nil
}

// Decode opens a workbook. Content that is not a readable .xlsx archive is
// reported as a *sheetid.FormatError.
func (c *Codec) Decode(data []byte) (sheetid.Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &sheetid.FormatError{Op: "open workbook", Err: err}
	}
	return &Document{f: f, codec: c}, nil
}

// Encode serializes a document previously returned by Decode.
func (c *Codec) Encode(doc sheetid.Document) ([]byte, error) {
	d, ok := doc.(*Document)
	if !ok {
		return nil, fmt.Errorf("xlsx codec cannot encode %T", doc)
	}

	buf, err := d.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Document is a decoded workbook.
type Document struct {
	f     *excelize.File
	codec *Codec
}

var _ sheetid.Document = (*Document)(nil)

// Close releases temporary files held by the workbook.
func (d *Document) Close() error {
	return d.f.Close()
}

func (d *Document) Sections() ([]*sheetid.Section, error) {
	var sections []*sheetid.Section

	for _, sheet := range d.f.GetSheetList() {
		if sheet == d.codec.reserved {
			continue
		}

		rows, err := d.f.GetRows(sheet)
		if err != nil {
			return nil, &sheetid.FormatError{Op: "read sheet " + sheet, Err: err}
		}

		section := &sheetid.Section{Name: sheet}
		for r := d.codec.headerRows + 1; r <= len(rows); r++ {
			ref, err := excelize.CoordinatesToCellName(d.codec.nameColumn, r)
			if err != nil {
				return nil, err
			}
			row, err := d.readRow(sheet, ref)
			if err != nil {
				return nil, err
			}
			section.Rows = append(section.Rows, row)
		}
		sections = append(sections, section)
	}

	return sections, nil
}

func (d *Document) readRow(sheet, ref string) (*sheetid.Row, error) {
	typ, err := d.f.GetCellType(sheet, ref)
	if err != nil {
		return nil, &sheetid.FormatError{Op: "read cell " + sheet + "!" + ref, Err: err}
	}
	value, err := d.f.GetCellValue(sheet, ref, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &sheetid.FormatError{Op: "read cell " + sheet + "!" + ref, Err: err}
	}

	return &sheetid.Row{
		Ref:  ref,
		Name: value,
		Text: typ == excelize.CellTypeSharedString || typ == excelize.CellTypeInlineString,
	}, nil
}

func (d *Document) SetName(section string, row *sheetid.Row, name string) error {
	if err := d.f.SetCellStr(section, row.Ref, name); err != nil {
		return err
	}
	row.Name = name
	row.Text = true
	return nil
}

func (d *Document) CounterValue() (string, error) {
	idx, err := d.f.GetSheetIndex(d.codec.reserved)
	if err != nil {
		return "", err
	}
	if idx == -1 {
		return "", nil
	}
	return d.f.GetCellValue(d.codec.reserved, d.codec.counterCell, excelize.Options{RawCellValue: true})
}

func (d *Document) SetCounterValue(v int) error {
	idx, err := d.f.GetSheetIndex(d.codec.reserved)
	if err != nil {
		return err
	}
	if idx == -1 {
		if _, err := d.f.NewSheet(d.codec.reserved); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", d.codec.reserved, err)
		}
	}
	return d.f.SetCellValue(d.codec.reserved, d.codec.counterCell, v)
}
