// Package chunk implements the splitting of extracted, page-tagged document
// text into bounded, overlapping segments ready for embedding.
//
// The splitter is recursive-character based: it prefers to cut at the largest
// structural boundary available (paragraph, then line, then sentence, then
// word) and only falls back to a hard cut when a single run of text has no
// usable boundary. Splitting is pure and deterministic: the same input and
// parameters always yield the same chunk sequence.
package chunk

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// separators in decreasing structural order; the empty string means
// "hard cut by runes".
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Page is one page of extracted source text.
type Page struct {
	Number int // 1-based page number
	Text   string
}

// Chunk is one bounded segment of a page's text.
type Chunk struct {
	Content     string
	PageNumber  int
	StartOffset int // rune offset of Content within the page text
}

// Splitter cuts page text into chunks of at most Size runes with Overlap
// runes shared between consecutive chunks.
type Splitter struct {
	Size    int
	Overlap int
}

// NewSplitter validates the parameters and returns a Splitter.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size < 1 {
		return nil, errors.New("chunk size must be >= 1")
	}
	if overlap < 0 || overlap >= size {
		return nil, errors.New("chunk overlap must be >= 0 and smaller than chunk size")
	}
	return &Splitter{Size: size, Overlap: overlap}, nil
}

// Split produces the ordered chunk sequence for the given pages. Pages with
// no text yield no chunks; no produced chunk is empty.
func (s *Splitter) Split(pages []Page) []Chunk {
	var out []Chunk
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		for _, pc := range s.splitPiece(piece{text: p.Text}, separators) {
			pc = trimPiece(pc)
			if pc.text == "" {
				continue
			}
			out = append(out, Chunk{
				Content:     pc.text,
				PageNumber:  p.Number,
				StartOffset: pc.off,
			})
		}
	}
	return out
}

// piece is a contiguous span of page text with its rune offset.
type piece struct {
	text string
	off  int
}

// splitPiece recursively cuts p at the first separator present in its text,
// merging small fragments back together up to the size limit.
func (s *Splitter) splitPiece(p piece, seps []string) []piece {
	if utf8.RuneCountInString(p.text) <= s.Size {
		return []piece{p}
	}

	sep, rest := chooseSeparator(p.text, seps)
	if sep == "" {
		return s.window(p)
	}

	parts := splitAfter(p, sep)

	var out []piece
	var small []piece
	flush := func() {
		if len(small) > 0 {
			out = append(out, s.merge(small)...)
			small = nil
		}
	}
	for _, sub := range parts {
		if utf8.RuneCountInString(sub.text) < s.Size {
			small = append(small, sub)
			continue
		}
		flush()
		out = append(out, s.splitPiece(sub, rest)...)
	}
	flush()
	return out
}

// merge joins consecutive small fragments into chunks of at most Size runes,
// retaining a trailing window of up to Overlap runes between chunks.
func (s *Splitter) merge(parts []piece) []piece {
	var out []piece
	var cur []piece
	total := 0

	for _, p := range parts {
		plen := utf8.RuneCountInString(p.text)
		if total+plen > s.Size && len(cur) > 0 {
			out = append(out, joinPieces(cur))
			for len(cur) > 0 && (total > s.Overlap || total+plen > s.Size) {
				total -= utf8.RuneCountInString(cur[0].text)
				cur = cur[1:]
			}
		}
		cur = append(cur, p)
		total += plen
	}
	if len(cur) > 0 {
		out = append(out, joinPieces(cur))
	}
	return out
}

// window hard-cuts p into Size-rune spans stepping Size-Overlap runes.
// Used only when no structural separator exists in the text.
func (s *Splitter) window(p piece) []piece {
	runes := []rune(p.text)
	step := s.Size - s.Overlap
	var out []piece
	for start := 0; start < len(runes); start += step {
		end := start + s.Size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, piece{text: string(runes[start:end]), off: p.off + start})
		if end == len(runes) {
			break
		}
	}
	return out
}

// chooseSeparator picks the largest separator present in text and returns it
// together with the remaining candidates for recursion.
func chooseSeparator(text string, seps []string) (string, []string) {
	for i, sp := range seps {
		if sp == "" {
			return "", nil
		}
		if strings.Contains(text, sp) {
			return sp, seps[i+1:]
		}
	}
	return "", nil
}

// splitAfter cuts p.text after each occurrence of sep, keeping the separator
// attached so that concatenating the parts reproduces the input and offsets
// stay exact.
func splitAfter(p piece, sep string) []piece {
	raw := strings.SplitAfter(p.text, sep)
	out := make([]piece, 0, len(raw))
	off := p.off
	for _, r := range raw {
		if r == "" {
			continue
		}
		out = append(out, piece{text: r, off: off})
		off += utf8.RuneCountInString(r)
	}
	return out
}

// joinPieces concatenates contiguous pieces into one, keeping the first
// piece's offset.
func joinPieces(parts []piece) piece {
	if len(parts) == 1 {
		return parts[0]
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.text)
	}
	return piece{text: b.String(), off: parts[0].off}
}

// trimPiece strips surrounding whitespace, advancing the offset by the number
// of leading runes removed.
func trimPiece(p piece) piece {
	trimmedLeft := strings.TrimLeft(p.text, " \t\r\n")
	lead := utf8.RuneCountInString(p.text) - utf8.RuneCountInString(trimmedLeft)
	return piece{
		text: strings.TrimRight(trimmedLeft, " \t\r\n"),
		off:  p.off + lead,
	}
}
