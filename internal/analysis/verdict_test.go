package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azure/controversy-analyzer/internal/models"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "JSON fence",
			input:    "```json\n{\"a\":1}\n```",
			expected: `{"a":1}`,
		},
		{
			name:     "Bare fence",
			input:    "```\n{\"a\":1}\n```",
			expected: `{"a":1}`,
		},
		{
			name:     "Surrounding whitespace",
			input:    "  \n```json\n{\"a\":1}\n```\n ",
			expected: `{"a":1}`,
		},
		{
			name:     "No fence",
			input:    ` {"a":1} `,
			expected: `{"a":1}`,
		},
		{
			name:     "Only opening fence",
			input:    "```json\n{\"a\":1}",
			expected: `{"a":1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripCodeFence(tt.input))
		})
	}
}

func TestParseVerdict(t *testing.T) {
	verdict, err := ParseVerdict(`{"is_controversial":true,"controversy_score":8,"reasons":["Inflammatory rhetoric"],"topics":["politics"]}`)
	require.NoError(t, err)

	assert.Equal(t, models.Verdict{
		IsControversial:  true,
		ControversyScore: 8,
		Reasons:          []string{"Inflammatory rhetoric"},
		Topics:           []string{"politics"},
	}, verdict)
}

func TestParseVerdict_MissingFieldsDefault(t *testing.T) {
	verdict, err := ParseVerdict(`{"is_controversial":true}`)
	require.NoError(t, err)

	assert.True(t, verdict.IsControversial)
	assert.Equal(t, 0, verdict.ControversyScore)
	assert.NotNil(t, verdict.Reasons)
	assert.Empty(t, verdict.Reasons)
	assert.NotNil(t, verdict.Topics)
	assert.Empty(t, verdict.Topics)
}

func TestParseVerdict_Invalid(t *testing.T) {
	_, err := ParseVerdict("not json")
	assert.Error(t, err)
}

func TestParseVerdict_FencedMatchesUnfenced(t *testing.T) {
	body := `{"is_controversial":false,"controversy_score":2,"reasons":[],"topics":["sports"]}`

	plain, err := ParseVerdict(StripCodeFence(body))
	require.NoError(t, err)

	fenced, err := ParseVerdict(StripCodeFence("```json\n" + body + "\n```"))
	require.NoError(t, err)

	assert.Equal(t, plain, fenced)
}

func TestParseVerdict_LenientFieldTypes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected models.Verdict
	}{
		{
			name:  "String score",
			input: `{"is_controversial":true,"controversy_score":"8","reasons":["Inflammatory rhetoric"],"topics":["politics"]}`,
			expected: models.Verdict{
				IsControversial:  true,
				ControversyScore: 8,
				Reasons:          []string{"Inflammatory rhetoric"},
				Topics:           []string{"politics"},
			},
		},
		{
			name:  "Fractional score truncated",
			input: `{"is_controversial":true,"controversy_score":7.9}`,
			expected: models.Verdict{
				IsControversial:  true,
				ControversyScore: 7,
				Reasons:          []string{},
				Topics:           []string{},
			},
		},
		{
			name:  "Single string reasons and topics",
			input: `{"is_controversial":true,"controversy_score":6,"reasons":"inflammatory","topics":"religion"}`,
			expected: models.Verdict{
				IsControversial:  true,
				ControversyScore: 6,
				Reasons:          []string{"inflammatory"},
				Topics:           []string{"religion"},
			},
		},
		{
			name:  "Truthy flag values",
			input: `{"is_controversial":"yes","controversy_score":"high","reasons":[1,"x",null]}`,
			expected: models.Verdict{
				IsControversial:  true,
				ControversyScore: 0,
				Reasons:          []string{"1", "x"},
				Topics:           []string{},
			},
		},
		{
			name:  "Falsy flag values",
			input: `{"is_controversial":0,"reasons":{"a":1},"topics":null}`,
			expected: models.Verdict{
				IsControversial:  false,
				ControversyScore: 0,
				Reasons:          []string{},
				Topics:           []string{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := ParseVerdict(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, verdict)
		})
	}
}

func TestParseVerdict_NonObjectTopLevel(t *testing.T) {
	for _, input := range []string{"null", `["a"]`, `"text"`, "42"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseVerdict(input)
			assert.Error(t, err)
		})
	}
}
