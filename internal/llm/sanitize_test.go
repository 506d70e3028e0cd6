package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeResponse(t *testing.T) {
	const key = "Material Filling"
	notFound := `{"Material Filling":"NOT FOUND"}`

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain json", `{"Material Filling": "GF20"}`, `{"Material Filling": "GF20"}`},
		{"reasoning preamble", "<think>the table says GF</think>\n{\"Material Filling\": \"GF\"}", `{"Material Filling": "GF"}`},
		{"fenced", "```json\n{\"Material Filling\": \"none\"}\n```", `{"Material Filling": "none"}`},
		{"think then fence", "<think>x</think>```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", "Here it is: {\"Material Filling\": \"GB\"} hope it helps", `{"Material Filling": "GB"}`},
		{"close before open tag", "</think>{\"a\":1}<think>", `{"a":1}`},
		{"empty", "", notFound},
		{"noise", "no braces at all", notFound},
		{"invalid json", "{not: json}", notFound},
		{"reversed braces", "} {", notFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeResponse(tt.raw, key))
		})
	}
}

func TestSanitizeResponse_Idempotent(t *testing.T) {
	inputs := []string{
		`{"Colour": "Black"}`,
		"<think>hmm</think>```json\n{\"Colour\": \"Black\"}\n```",
		"garbage",
	}
	for _, in := range inputs {
		once := SanitizeResponse(in, "Colour")
		assert.Equal(t, once, SanitizeResponse(once, "Colour"))
	}
}

func TestDecodeValue(t *testing.T) {
	v, ok := DecodeValue(`{"Number of Rows": "2"}`, "Number of Rows")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	v, ok = DecodeValue(`{"Number of Rows": 2}`, "Number of Rows")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	_, ok = DecodeValue(`{"Other": "x"}`, "Number of Rows")
	assert.False(t, ok)

	_, ok = DecodeValue(`[1,2]`, "Number of Rows")
	assert.False(t, ok)
}

func TestDecodeValue_BlankIsAbsent(t *testing.T) {
	for _, in := range []string{
		`{"Material Filling": null}`,
		`{"Material Filling": ""}`,
		`{"Material Filling": "   "}`,
	} {
		v, ok := DecodeValue(in, "Material Filling")
		assert.False(t, ok, in)
		assert.Empty(t, v, in)
	}
}
