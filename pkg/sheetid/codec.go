package sheetid

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultDigitWidth is the number of digits in a rendered identifier.
const DefaultDigitWidth = 4

// ErrIdentifierSpaceExhausted is returned when an identifier no longer fits
// in the configured digit width.
var ErrIdentifierSpaceExhausted = errors.New("identifier space exhausted")

// malformedSuffix matches the first "_<digits>" run and everything after it.
var malformedSuffix = regexp.MustCompile(`_[0-9]+.*$`)

// IdentifierCodec parses and renders the identifier suffix embedded in a
// display name.
type IdentifierCodec struct {
	width int
	exact *regexp.Regexp
	max   int
}

// NewIdentifierCodec creates a codec for identifiers of the given digit width.
func NewIdentifierCodec(width int) (*IdentifierCodec, error) {
	if width < 1 || width > 9 {
		return nil, fmt.Errorf("digit width must be between 1 and 9, got %d", width)
	}

	max := 1
	for i := 0; i < width; i++ {
		max *= 10
	}

	return &IdentifierCodec{
		width: width,
		exact: regexp.MustCompile(fmt.Sprintf(`_([0-9]{%d})$`, width)),
		max:   max - 1,
	}, nil
}

// MustIdentifierCodec is like NewIdentifierCodec but panics on error.
func MustIdentifierCodec(width int) *IdentifierCodec {
	c, err := NewIdentifierCodec(width)
	if err != nil {
		panic(err)
	}
	return c
}

// MaxIdentifier returns the largest identifier that fits in the digit width.
func (c *IdentifierCodec) MaxIdentifier() int {
	return c.max
}

// Extract returns the identifier carried at the very end of name.
func (c *IdentifierCodec) Extract(name string) (int, bool) {
	m := c.exact.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// Strip removes a previous, possibly corrupted, suffix: everything from the
// first "_<digits>" run to the end of name.
func (c *IdentifierCodec) Strip(name string) string {
	loc := malformedSuffix.FindStringIndex(name)
	if loc == nil {
		return name
	}
	return strings.TrimRight(name[:loc[0]], " \t")
}

// Format renders base with the zero-padded identifier appended.
func (c *IdentifierCodec) Format(base string, id int) (string, error) {
	if id < 0 {
		return "", fmt.Errorf("identifier must not be negative, got %d", id)
	}
	if id > c.max {
		return "", fmt.Errorf("%w: %d does not fit in %d digits", ErrIdentifierSpaceExhausted, id, c.width)
	}
	return fmt.Sprintf("%s_%0*d", base, c.width, id), nil
}

// Assignable reports whether a row with this name should carry an identifier.
func Assignable(row *Row) bool {
	return row != nil && row.Text && strings.TrimSpace(row.Name) != ""
}
