package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadWindow(t *testing.T) {
	_, err := New(0, 0)
	assert.Error(t, err)

	_, err = New(100, 100)
	assert.Error(t, err)

	_, err = New(100, -1)
	assert.Error(t, err)

	c, err := New(100, 99)
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestSplitEmptyInput(t *testing.T) {
	c, err := New(100, 10)
	require.NoError(t, err)
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\t  "))
}

func TestSplitShortTextSinglePiece(t *testing.T) {
	c, err := New(100, 10)
	require.NoError(t, err)

	pieces := c.Split("hello world")
	require.Len(t, pieces, 1)
	assert.Equal(t, 0, pieces[0].Seq)
	assert.Equal(t, "hello world", pieces[0].Text)
}

// reconstruct stitches pieces back together, dropping each piece's leading
// overlap region, and must reproduce the original text exactly.
func reconstruct(pieces []Piece, overlap int) string {
	var b strings.Builder
	for i, p := range pieces {
		runes := []rune(p.Text)
		if i == 0 {
			b.WriteString(p.Text)
			continue
		}
		b.WriteString(string(runes[overlap:]))
	}
	return b.String()
}

func TestSplitTenThousandCharDocument(t *testing.T) {
	text := strings.Repeat("a", 10000)
	c, err := New(1000, 100)
	require.NoError(t, err)

	pieces := c.Split(text)
	require.NotEmpty(t, pieces)

	for i, p := range pieces {
		assert.Equal(t, i, p.Seq, "sequence must be dense from zero")
		assert.LessOrEqual(t, len([]rune(p.Text)), 1000)
		if i > 0 {
			prev := pieces[i-1]
			assert.Equal(t, prev.End-100, p.Start, "consecutive pieces share exactly 100 runes")
			assert.Equal(t, prev.Text[len(prev.Text)-100:], p.Text[:100])
		}
	}
	assert.Equal(t, 0, pieces[0].Start)
	assert.Equal(t, 10000, pieces[len(pieces)-1].End)
	assert.Equal(t, text, reconstruct(pieces, 100))
}

func TestSplitRespectsSentenceBoundaries(t *testing.T) {
	sentence := "The quick brown fox jumps over the lazy dog. "
	text := strings.Repeat(sentence, 50)
	c, err := New(200, 20)
	require.NoError(t, err)

	pieces := c.Split(text)
	require.Greater(t, len(pieces), 1)

	// Every piece except the last should end just after a sentence terminator,
	// since boundaries are always available within the budget here.
	for _, p := range pieces[:len(pieces)-1] {
		trimmed := strings.TrimRight(p.Text, " ")
		assert.True(t, strings.HasSuffix(trimmed, "."), "piece %d ends mid-sentence: %q", p.Seq, p.Text)
	}
	assert.Equal(t, text, reconstruct(pieces, 20))
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	para := strings.Repeat("x", 150) + "\n\n"
	text := strings.Repeat(para, 10)
	c, err := New(300, 30)
	require.NoError(t, err)

	pieces := c.Split(text)
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces[:len(pieces)-1] {
		assert.True(t, strings.HasSuffix(p.Text, "\n\n"), "piece %d does not end on a paragraph break", p.Seq)
	}
	assert.Equal(t, text, reconstruct(pieces, 30))
}

func TestSplitHardCutsWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("b", 2500)
	c, err := New(1000, 0)
	require.NoError(t, err)

	pieces := c.Split(text)
	require.Len(t, pieces, 3)
	assert.Equal(t, 1000, len(pieces[0].Text))
	assert.Equal(t, 1000, len(pieces[1].Text))
	assert.Equal(t, 500, len(pieces[2].Text))
	assert.Equal(t, text, reconstruct(pieces, 0))
}

func TestSplitNeverExceedsSizeBound(t *testing.T) {
	text := strings.Repeat("word. ", 2000)
	for _, overlap := range []int{0, 10, 50} {
		c, err := New(120, overlap)
		require.NoError(t, err)
		for _, p := range c.Split(text) {
			assert.LessOrEqual(t, len([]rune(p.Text)), 120)
		}
	}
}

func TestSplitMultibyteRunes(t *testing.T) {
	text := strings.Repeat("日本語のテキスト。", 100)
	c, err := New(50, 5)
	require.NoError(t, err)

	pieces := c.Split(text)
	require.NotEmpty(t, pieces)
	for _, p := range pieces {
		assert.LessOrEqual(t, len([]rune(p.Text)), 50)
	}
	assert.Equal(t, text, reconstruct(pieces, 5))
}
