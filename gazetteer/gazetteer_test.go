package gazetteer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"sglocations.io/ner/types"
)

func TestParsePatterns(t *testing.T) {
	buf := []byte(`[
		"Maxwell Road",
		{"label": "GPE", "pattern": "Tanjong Pagar"},
		{"pattern": "Ang Mo Kio"},
		{"label": "LOC", "pattern": [{"LOWER": "orchard"}]},
		"Maxwell Road",
		"   ",
		42
	]`)

	patterns, err := ParsePatterns(buf, types.DefaultEntityLabel)
	require.NoError(t, err)

	expected := []Pattern{
		{Label: "LOC", Pattern: "Maxwell Road"},
		{Label: "GPE", Pattern: "Tanjong Pagar"},
		{Label: "LOC", Pattern: "Ang Mo Kio"},
	}
	if diff := cmp.Diff(expected, patterns); diff != "" {
		t.Errorf("unexpected patterns (-want +got):\n%s", diff)
	}
}

func TestParsePatternsNotAList(t *testing.T) {
	_, err := ParsePatterns([]byte(`{"pattern": "Maxwell Road"}`), "LOC")
	require.Error(t, err)
}

func TestLoadPatterns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "combined_locations.json")
	require.NoError(t, os.WriteFile(path, []byte(`["Bishan", "Toa Payoh"]`), 0o644))

	patterns, err := LoadPatterns(path, "LOC")
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	_, err = LoadPatterns(filepath.Join(t.TempDir(), "missing.json"), "LOC")
	require.Error(t, err)
}

func TestRuler(t *testing.T) {
	ruler := NewRuler("erl", []Pattern{
		{Label: "LOC", Pattern: "Maxwell Road"},
		{Label: "LOC", Pattern: "Maxwell"},
		{Label: "FAC", Pattern: "Urban Redevelopment Authority"},
		{Label: "GPE", Pattern: "Maxwell Road"},
	}, Options{})
	require.Equal(t, "erl", ruler.Name())
	require.Equal(t, 3, ruler.Len())

	text := "The Urban Redevelopment Authority is located at 45 Maxwell Road."
	entities, err := ruler.Recognize(context.Background(), text)
	require.NoError(t, err)

	expected := []types.Entity{
		{Text: "Urban Redevelopment Authority", Label: "FAC", Begin: 4, End: 33},
		{Text: "Maxwell Road", Label: "LOC", Begin: 51, End: 63},
	}
	if diff := cmp.Diff(expected, entities); diff != "" {
		t.Errorf("unexpected entities (-want +got):\n%s", diff)
	}
}

func TestRulerWholeWords(t *testing.T) {
	ruler := NewRuler("erl", []Pattern{
		{Label: "LOC", Pattern: "Orchard Road"},
		{Label: "LOC", Pattern: "Orchard"},
		{Label: "LOC", Pattern: "Bishan"},
		{Label: "LOC", Pattern: "Ang Mo Kio"},
		{Label: "LOC", Pattern: "Ang Mo Kio Ave 3"},
	}, Options{})

	tests := []struct {
		name     string
		text     string
		expected []types.Entity
	}{
		{
			name:     "shorter pattern when the longest is inside a word",
			text:     "Orchard Roadside",
			expected: []types.Entity{{Text: "Orchard", Label: "LOC", Begin: 0, End: 7}},
		},
		{
			name:     "longest whole word",
			text:     "Orchard Road, Singapore",
			expected: []types.Entity{{Text: "Orchard Road", Label: "LOC", Begin: 0, End: 12}},
		},
		{
			name:     "letter before the match",
			text:     "éBishan",
			expected: []types.Entity{},
		},
		{
			name:     "letter after the match",
			text:     "Bishané",
			expected: []types.Entity{},
		},
		{
			name:     "digit after the match",
			text:     "Ang Mo Kio Ave 31",
			expected: []types.Entity{{Text: "Ang Mo Kio", Label: "LOC", Begin: 0, End: 10}},
		},
		{
			name: "non-ASCII punctuation is a boundary",
			text: "«Bishan» and Ang Mo Kio Ave 3",
			expected: []types.Entity{
				{Text: "Bishan", Label: "LOC", Begin: 1, End: 7},
				{Text: "Ang Mo Kio Ave 3", Label: "LOC", Begin: 13, End: 29},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entities, err := ruler.Recognize(context.Background(), tt.text)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.expected, entities); diff != "" {
				t.Errorf("unexpected entities (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRulerRuneOffsets(t *testing.T) {
	ruler := NewRuler("erl", []Pattern{{Label: "LOC", Pattern: "Orchard Road"}}, Options{})
	entities, err := ruler.Recognize(context.Background(), "Café at Orchard Road")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	require.Equal(t, int32(8), entities[0].Begin)
	require.Equal(t, int32(20), entities[0].End)
}

func TestRulerCaseSensitivity(t *testing.T) {
	patterns := []Pattern{{Label: "LOC", Pattern: "Bishan"}}
	text := "meet at bishan MRT"

	entities, err := NewRuler("cs", patterns, Options{}).Recognize(context.Background(), text)
	require.NoError(t, err)
	require.Empty(t, entities)

	entities, err = NewRuler("ci", patterns, Options{CaseInsensitive: true}).Recognize(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	require.Equal(t, "bishan", entities[0].Text)

	// only ASCII letters fold
	entities, err = NewRuler("ci", []Pattern{{Label: "LOC", Pattern: "Café"}}, Options{CaseInsensitive: true}).
		Recognize(context.Background(), "CAFÉ CAFé")
	require.NoError(t, err)
	require.Equal(t, []types.Entity{{Text: "CAFé", Label: "LOC", Begin: 5, End: 9}}, entities)
}

func TestRulerEmpty(t *testing.T) {
	entities, err := NewRuler("empty", nil, Options{}).Recognize(context.Background(), "Maxwell Road")
	require.NoError(t, err)
	require.Empty(t, entities)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewRuler("empty", nil, Options{}).Recognize(ctx, "Maxwell Road")
	require.True(t, errors.Is(err, context.Canceled))
}
