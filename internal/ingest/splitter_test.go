package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitter_Split(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
		want    []string
	}{
		{
			name: "short text is one chunk",
			size: 100, overlap: 10,
			text: "  **Colour:** Black  ",
			want: []string{"**Colour:** Black"},
		},
		{
			name: "paragraphs",
			size: 12, overlap: 0,
			text: "first para\n\nsecond one\n\nthird",
			want: []string{"first para", "second one", "third"},
		},
		{
			name: "words with overlap",
			size: 10, overlap: 4,
			text: "aaa bbb ccc ddd",
			want: []string{"aaa bbb", "bbb ccc", "ccc ddd"},
		},
		{
			name: "characters when no separator fits",
			size: 3, overlap: 0,
			text: "abcdefg",
			want: []string{"abc", "def", "g"},
		},
		{
			name: "empty",
			size: 10, overlap: 0,
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewSplitter(tt.size, tt.overlap).Split(tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitter_ChunksRespectSize(t *testing.T) {
	text := strings.Repeat("Temperature range −40 °C to 125 °C.\n", 50)
	chunks := NewSplitter(100, 20).Split(text)

	assert.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, runeLen(c), 100)
		assert.NotEqual(t, "", strings.TrimSpace(c))
	}
}

func TestSplitter_OversizePiecesAreTrimmed(t *testing.T) {
	s := &Splitter{ChunkSize: 5, Separators: []string{"\n"}}

	got := s.Split("ab\n        \n  abcdefg  ")

	assert.Equal(t, []string{"ab", "abcdefg"}, got)
}
