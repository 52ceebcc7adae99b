package sheetid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifierCodec_Extract(t *testing.T) {
	codec := MustIdentifierCodec(4)

	tests := []struct {
		name   string
		input  string
		wantID int
		wantOK bool
	}{
		{"well formed", "Acme_0013", 13, true},
		{"zero", "Acme_0000", 0, true},
		{"two digits", "Acme_12", 0, false},
		{"five digits", "Acme_00012", 0, false},
		{"not at end", "Acme_0013 copy", 0, false},
		{"trailing space", "Acme_0013 ", 0, false},
		{"inner identifier", "Acme_0013_0007", 7, true},
		{"no separator", "Acme0013", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := codec.Extract(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestIdentifierCodec_Strip(t *testing.T) {
	codec := MustIdentifierCodec(4)

	tests := []struct {
		input string
		want  string
	}{
		{"Acme_12", "Acme"},
		{"Acme_001_extra", "Acme"},
		{"Acme_0003", "Acme"},
		{"Acme", "Acme"},
		{"Acme_Corp", "Acme_Corp"},
		{"Acme _7", "Acme"},
		{"_12", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, codec.Strip(tt.input))
		})
	}
}

func TestIdentifierCodec_Format(t *testing.T) {
	codec := MustIdentifierCodec(4)

	name, err := codec.Format("Acme", 9)
	require.NoError(t, err)
	assert.Equal(t, "Acme_0009", name)

	name, err = codec.Format("Acme", 9999)
	require.NoError(t, err)
	assert.Equal(t, "Acme_9999", name)

	_, err = codec.Format("Acme", 10000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIdentifierSpaceExhausted))

	_, err = codec.Format("Acme", -1)
	assert.Error(t, err)
}

func TestIdentifierCodec_FormatRoundTrip(t *testing.T) {
	codec := MustIdentifierCodec(6)
	assert.Equal(t, 999999, codec.MaxIdentifier())

	name, err := codec.Format(codec.Strip("Widget_3_old"), 42)
	require.NoError(t, err)
	assert.Equal(t, "Widget_000042", name)

	id, ok := codec.Extract(name)
	require.True(t, ok)
	assert.Equal(t, 42, id)
}

func TestNewIdentifierCodec_InvalidWidth(t *testing.T) {
	_, err := NewIdentifierCodec(0)
	assert.Error(t, err)

	_, err = NewIdentifierCodec(10)
	assert.Error(t, err)
}

func TestAssignable(t *testing.T) {
	assert.True(t, Assignable(&Row{Name: "Acme", Text: true}))
	assert.False(t, Assignable(&Row{Name: "   ", Text: true}))
	assert.False(t, Assignable(&Row{Name: "", Text: true}))
	assert.False(t, Assignable(&Row{Name: "42", Text: false}))
	assert.False(t, Assignable(nil))
}
