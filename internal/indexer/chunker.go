package indexer

import "strings"

// Default chunking parameters
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

var defaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Splitter cuts text into chunks of at most Size characters, preferring to
// break on paragraphs, then lines, then sentences, then words. Consecutive
// chunks share up to Overlap characters.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

// NewSplitter returns a Splitter with the default separators. Non-positive
// values select the defaults; an overlap not smaller than size is reduced.
func NewSplitter(size, overlap int) Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 10
	}
	return Splitter{Size: size, Overlap: overlap, Separators: defaultSeparators}
}

// Split returns the trimmed, non-empty chunks of text.
func (s Splitter) Split(text string) []string {
	var out []string
	for _, c := range s.split(text, s.Separators) {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s Splitter) split(text string, separators []string) []string {
	if len([]rune(text)) <= s.Size {
		return []string{text}
	}

	sep, rest := "", []string(nil)
	for i, candidate := range separators {
		if strings.Contains(text, candidate) {
			sep, rest = candidate, separators[i+1:]
			break
		}
	}
	if sep == "" {
		return s.hardSplit(text)
	}

	var pieces []string
	for _, p := range strings.SplitAfter(text, sep) {
		if p == "" {
			continue
		}
		if len([]rune(p)) > s.Size {
			pieces = append(pieces, s.split(p, rest)...)
			continue
		}
		pieces = append(pieces, p)
	}
	return s.merge(pieces)
}

// merge packs pieces into chunks, carrying trailing pieces worth at most
// Overlap characters into the next chunk.
func (s Splitter) merge(pieces []string) []string {
	var (
		chunks []string
		window []string
		total  int
	)
	for _, p := range pieces {
		n := len([]rune(p))
		if total+n > s.Size && len(window) > 0 {
			chunks = append(chunks, strings.Join(window, ""))
			for total > s.Overlap || (total+n > s.Size && total > 0) {
				total -= len([]rune(window[0]))
				window = window[1:]
			}
		}
		window = append(window, p)
		total += n
	}
	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, ""))
	}
	return chunks
}

func (s Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	step := s.Size - s.Overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+s.Size, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
