// Package chunker splits document text into overlapping, sentence-aware
// windows.
package chunker

import "strings"

// Piece is one chunk of a document. Start and End are rune offsets into the
// source text; Text is exactly the source runes in [Start, End).
type Piece struct {
	Index int
	Start int
	End   int
	Text  string
}

// Split cuts text into windows of at most size runes. When a window stops
// short of the end of text and its last sentence terminator lies past the
// window midpoint, the window is shortened to end just after that
// terminator. Consecutive windows overlap by overlap runes, and every window
// starts at least one rune after the previous one. Splitting stops as soon
// as a window reaches the end of text.
//
// size must be positive. overlap is clamped to [0, size).
func Split(text string, size, overlap int) []Piece {
	if size <= 0 || text == "" {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	n := len(runes)

	var pieces []Piece
	for start := 0; start < n; {
		end := start + size
		if end > n {
			end = n
		}
		if end < n {
			if cut := lastTerminator(runes[start:end]); cut > size/2 {
				end = start + cut + 1
			}
		}

		pieces = append(pieces, Piece{
			Index: len(pieces),
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})
		if end >= n {
			break
		}

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return pieces
}

// lastTerminator returns the index of the last '.', '!' or '?' in window,
// or -1.
func lastTerminator(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}

// Reassemble rebuilds the source text from pieces produced by Split, dropping
// the overlapping prefix of each piece after the first.
func Reassemble(pieces []Piece) string {
	var b strings.Builder
	covered := 0
	for _, p := range pieces {
		runes := []rune(p.Text)
		skip := covered - p.Start
		if skip < 0 {
			skip = 0
		}
		if skip < len(runes) {
			b.WriteString(string(runes[skip:]))
		}
		if p.End > covered {
			covered = p.End
		}
	}
	return b.String()
}
