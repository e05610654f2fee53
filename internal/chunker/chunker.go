// Package chunker splits raw document text into bounded-size, overlapping
// pieces suitable for embedding. Cuts prefer paragraph and sentence
// boundaries; a hard cut at the size limit guarantees the bound.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
)

// Piece is one chunk of a document. Start/End are rune offsets into the
// original text; Seq is dense from zero.
type Piece struct {
	Seq   int
	Text  string
	Start int
	End   int
}

type Chunker struct {
	maxSize int
	overlap int
}

// New validates the window parameters. Overlap must be strictly smaller than
// the chunk size or the window could never advance.
func New(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("chunker: max size must be positive, got %d", maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("chunker: overlap must be in [0, max size), got %d", overlap)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// Split cuts text into pieces of at most maxSize runes where consecutive
// pieces share exactly overlap runes. Whitespace-only input yields nothing.
func (c *Chunker) Split(text string) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	var pieces []Piece
	start := 0
	for seq := 0; ; seq++ {
		end := start + c.maxSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.cutPoint(runes, start, end)
		}

		pieces = append(pieces, Piece{
			Seq:   seq,
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})
		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}
	return pieces
}

// cutPoint picks where to end a chunk that would otherwise be hard-cut at
// limit. Paragraph breaks win over sentence ends; either is accepted only if
// the cut keeps the chunk large enough for the window to advance past the
// overlap region.
func (c *Chunker) cutPoint(runes []rune, start, limit int) int {
	minCut := start + c.overlap + 1
	if half := start + c.maxSize/2; half > minCut {
		minCut = half
	}
	if minCut >= limit {
		return limit
	}

	if p := lastParagraphBreak(runes, minCut, limit); p > 0 {
		return p
	}
	if s := lastSentenceEnd(runes, minCut, limit); s > 0 {
		return s
	}
	return limit
}

// lastParagraphBreak returns the cut position just after the last blank-line
// separator in [min, limit), or 0 when there is none.
func lastParagraphBreak(runes []rune, min, limit int) int {
	for i := limit - 1; i > min; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	return 0
}

// lastSentenceEnd returns the cut position just after the last sentence
// terminator followed by whitespace in [min, limit), or 0 when there is none.
func lastSentenceEnd(runes []rune, min, limit int) int {
	for i := limit - 1; i > min; i-- {
		if isSentenceEnd(runes[i-1]) && unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return 0
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '\n', '。', '！', '？':
		return true
	}
	return false
}
