package sheetid

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransformer(policy AllocationPolicy) *Transformer {
	return NewTransformer(TransformerConfig{
		Codec:  MustIdentifierCodec(4),
		Policy: policy,
	})
}

func TestApply_MonotonicAppend(t *testing.T) {
	doc := NewMemoryDocument("12",
		TextSection("Projects", "Acme_0007", "Globex", "Initech"),
	)

	result, err := newTestTransformer(MonotonicAppend{}).Apply(doc)
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, []string{"Acme_0007", "Globex_0013", "Initech_0014"}, doc.Names("Projects"))
	assert.Equal(t, 14, result.MaxID)
	assert.Equal(t, 14, result.Counter)
	assert.Equal(t, "14", doc.Counter)
	require.Len(t, result.Assignments, 2)
	assert.Equal(t, Assignment{Section: "Projects", Ref: "B3", OldName: "Globex", NewName: "Globex_0013", ID: 13}, result.Assignments[0])
}

func TestApply_LowestGapFill(t *testing.T) {
	doc := NewMemoryDocument("4",
		TextSection("A", "One_0001", "New row"),
		TextSection("B", "Two_0002", "Four_0004", "Another"),
	)

	result, err := newTestTransformer(LowestGapFill{}).Apply(doc)
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, []string{"One_0001", "New row_0003"}, doc.Names("A"))
	assert.Equal(t, []string{"Two_0002", "Four_0004", "Another_0005"}, doc.Names("B"))
	assert.Equal(t, 5, result.MaxID)
	assert.Equal(t, "5", doc.Counter)
}

func TestApply_GapFillSeesLaterSections(t *testing.T) {
	// Identifier 1 lives in a section visited after the unidentified row.
	doc := NewMemoryDocument("",
		TextSection("First", "Fresh"),
		TextSection("Second", "Old_0001"),
	)

	_, err := newTestTransformer(LowestGapFill{}).Apply(doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"Fresh_0002"}, doc.Names("First"))
}

func TestApply_MalformedSuffixCleanup(t *testing.T) {
	doc := NewMemoryDocument("8",
		TextSection("Projects", "Acme_12", "Beta_001_extra"),
	)

	_, err := newTestTransformer(MonotonicAppend{}).Apply(doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"Acme_0009", "Beta_0010"}, doc.Names("Projects"))
}

func TestApply_Idempotent(t *testing.T) {
	for _, p := range []AllocationPolicy{MonotonicAppend{}, LowestGapFill{}} {
		t.Run(string(p.Name()), func(t *testing.T) {
			doc := NewMemoryDocument("3",
				TextSection("A", "x", "y_0002", "z_99"),
				TextSection("B", "w", "", "  "),
			)
			tr := newTestTransformer(p)

			first, err := tr.Apply(doc)
			require.NoError(t, err)
			require.True(t, first.Changed)

			before, err := json.Marshal(doc)
			require.NoError(t, err)

			second, err := tr.Apply(doc)
			require.NoError(t, err)
			assert.False(t, second.Changed)
			assert.Empty(t, second.Assignments)

			after, err := json.Marshal(doc)
			require.NoError(t, err)
			assert.JSONEq(t, string(before), string(after))
		})
	}
}

func TestApply_NoOpKeepsCounter(t *testing.T) {
	doc := NewMemoryDocument("2",
		TextSection("A", "x_0001", "y_0005"),
	)

	result, err := newTestTransformer(MonotonicAppend{}).Apply(doc)
	require.NoError(t, err)

	assert.False(t, result.Changed)
	assert.Equal(t, "2", doc.Counter)
	assert.Equal(t, 5, result.MaxID)
}

func TestApply_SkipsNonTextAndBlank(t *testing.T) {
	doc := &MemoryDocument{
		SectionList: []*Section{{
			Name: "A",
			Rows: []*Row{
				{Ref: "B2", Name: "42", Text: false},
				{Ref: "B3", Name: "", Text: true},
				{Ref: "B4", Name: "   ", Text: true},
				{Ref: "B5", Name: "Real", Text: true},
			},
		}},
	}

	result, err := newTestTransformer(MonotonicAppend{}).Apply(doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"42", "", "   ", "Real_0001"}, doc.Names("A"))
	assert.Len(t, result.Assignments, 1)
}

func TestApply_LoweredCounterRecoveredByScan(t *testing.T) {
	doc := NewMemoryDocument("1",
		TextSection("A", "x_0040", "new"),
	)

	result, err := newTestTransformer(MonotonicAppend{}).Apply(doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"x_0040", "new_0041"}, doc.Names("A"))
	assert.Equal(t, "41", doc.Counter)
	assert.Equal(t, 41, result.Counter)
}

func TestApply_MalformedCounterReadsAsZero(t *testing.T) {
	doc := NewMemoryDocument("not a number",
		TextSection("A", "new"),
	)

	_, err := newTestTransformer(MonotonicAppend{}).Apply(doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"new_0001"}, doc.Names("A"))
}

func TestApply_DuplicateIdentifierReassigned(t *testing.T) {
	doc := NewMemoryDocument("3",
		TextSection("A", "Acme_0003"),
		TextSection("B", "Acme copy_0003"),
	)

	result, err := newTestTransformer(MonotonicAppend{}).Apply(doc)
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, []string{"Acme_0003"}, doc.Names("A"))
	assert.Equal(t, []string{"Acme copy_0004"}, doc.Names("B"))
}

func TestApply_IdentifierSpaceExhausted(t *testing.T) {
	tr := NewTransformer(TransformerConfig{Codec: MustIdentifierCodec(1)})
	doc := NewMemoryDocument("9", TextSection("A", "x"))

	_, err := tr.Apply(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdentifierSpaceExhausted)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestApply_UniqueAndWellFormed(t *testing.T) {
	names := []string{"a", "b_0002", "c_7", "d", "e_0002", "f_0001_x", "g", "h_0010", "i"}
	format := regexp.MustCompile(`^[^_]*_[0-9]{4}$`)

	for _, p := range []AllocationPolicy{MonotonicAppend{}, LowestGapFill{}} {
		t.Run(string(p.Name()), func(t *testing.T) {
			doc := NewMemoryDocument("0",
				TextSection("A", names[:4]...),
				TextSection("B", names[4:]...),
			)
			codec := MustIdentifierCodec(4)

			_, err := newTestTransformer(p).Apply(doc)
			require.NoError(t, err)

			seen := make(IDSet)
			for _, section := range []string{"A", "B"} {
				for _, name := range doc.Names(section) {
					assert.Regexp(t, format, name)
					id, ok := codec.Extract(name)
					require.True(t, ok, name)
					assert.False(t, seen.Has(id), "duplicate identifier %d", id)
					seen.Add(id)
				}
			}
		})
	}
}

func TestReadCounter(t *testing.T) {
	tests := map[string]int{
		"":      0,
		"  ":    0,
		"12":    12,
		" 12 ":  12,
		"12.0":  12,
		"-4":    0,
		"abc":   0,
		"1e3":   1000,
		"-2.5":  0,
		"00017": 17,
	}
	for raw, want := range tests {
		t.Run(raw, func(t *testing.T) {
			got, err := ReadCounter(&MemoryDocument{Counter: raw})
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestReconcile(t *testing.T) {
	assert.Equal(t, 12, Reconcile(12, 7))
	assert.Equal(t, 40, Reconcile(1, 40))
	assert.Equal(t, 0, Reconcile(0, 0))
}
