package sheetid

import (
	"errors"
	"fmt"
)

// DefaultReservedSection is the section that holds the persisted counter.
const DefaultReservedSection = "__GLOBAL__"

// ErrFormat matches every *FormatError.
var ErrFormat = errors.New("document format error")

// FormatError is returned when content cannot be read as a workbook with the
// expected structure. The document is never written after a FormatError.
type FormatError struct {
	Op  string
	Err error
}

func (e *FormatError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("document format error: %v", e.Err)
	}
	return fmt.Sprintf("document format error (%s): %v", e.Op, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// Row is one data record. Name is the display-name cell; Text is false when
// that cell is not a string (number, boolean, formula or empty).
type Row struct {
	Ref  string `json:"ref"`
	Name string `json:"name"`
	Text bool   `json:"text"`
}

// Section is an ordered collection of rows, one per worksheet.
type Section struct {
	Name string `json:"name"`
	Rows []*Row `json:"rows"`
}

// Document is one decoded snapshot of the watched workbook. It is mutated in
// memory and either discarded or encoded and stored as a whole.
type Document interface {
	// Sections returns the data sections in workbook order. The reserved
	// counter section is never included.
	Sections() ([]*Section, error)

	// SetName replaces the display name of row in section.
	SetName(section string, row *Row, name string) error

	// CounterValue returns the raw counter cell, or "" when it is absent.
	CounterValue() (string, error)

	// SetCounterValue persists v in the reserved section, creating the
	// section when needed.
	SetCounterValue(v int) error
}

// DocumentCodec converts between stored bytes and a Document. Encode must
// preserve all content outside the name column and the counter cell.
type DocumentCodec interface {
	Decode(data []byte) (Document, error)
	Encode(doc Document) ([]byte, error)
}

// MemoryDocument is a Document held entirely in memory.
type MemoryDocument struct {
	SectionList []*Section `json:"sections"`
	Counter     string     `json:"counter"`
}

var _ Document = (*MemoryDocument)(nil)

// NewMemoryDocument builds a document from a raw counter value and sections.
func NewMemoryDocument(counter string, sections ...*Section) *MemoryDocument {
	return &MemoryDocument{SectionList: sections, Counter: counter}
}

// TextSection is a helper for building a section of text rows.
func TextSection(name string, names ...string) *Section {
	s := &Section{Name: name}
	for i, n := range names {
		s.Rows = append(s.Rows, &Row{
			Ref:  fmt.Sprintf("B%d", i+2),
			Name: n,
			Text: true,
		})
	}
	return s
}

func (d *MemoryDocument) Sections() ([]*Section, error) {
	return d.SectionList, nil
}

func (d *MemoryDocument) SetName(section string, row *Row, name string) error {
	for _, s := range d.SectionList {
		if s.Name != section {
			continue
		}
		for _, r := range s.Rows {
			if r == row || r.Ref == row.Ref {
				r.Name = name
				r.Text = true
				row.Name = name
				return nil
			}
		}
		return fmt.Errorf("row %s not found in section %s", row.Ref, section)
	}
	return fmt.Errorf("section %s not found", section)
}

func (d *MemoryDocument) CounterValue() (string, error) {
	return d.Counter, nil
}

func (d *MemoryDocument) SetCounterValue(v int) error {
	d.Counter = fmt.Sprintf("%d", v)
	return nil
}

// Names returns the display names of a section, for assertions and tooling.
func (d *MemoryDocument) Names(section string) []string {
	for _, s := range d.SectionList {
		if s.Name != section {
			continue
		}
		out := make([]string, 0, len(s.Rows))
		for _, r := range s.Rows {
			out = append(out, r.Name)
		}
		return out
	}
	return nil
}
