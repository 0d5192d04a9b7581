package service

import (
	"regexp"
	"strings"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/config"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/model"
	"github.com/google/uuid"
)

// Chunker splits extracted page text into bounded, overlapping chunks.
// Boundaries respect sentence ends where possible so a claim is not cut
// mid-sentence; the overlap repeats trailing sentences of the previous chunk
// so claims spanning a boundary survive in at least one chunk.
type Chunker struct {
	size    int
	overlap int
	minSize int
}

func NewChunker(cfg *config.ChunkingConfig) *Chunker {
	return &Chunker{
		size:    cfg.Size,
		overlap: cfg.Overlap,
		minSize: cfg.MinSize,
	}
}

var (
	whitespaceRE   = regexp.MustCompile(`\s+`)
	pageArtifactRE = regexp.MustCompile(`(?i)\bpage \d+( of \d+)?\b`)
)

// CleanText collapses whitespace and strips "Page N of M" footer artifacts
func CleanText(text string) string {
	text = whitespaceRE.ReplaceAllString(text, " ")
	text = pageArtifactRE.ReplaceAllString(text, " ")
	text = whitespaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Split chunks every page of a document. Page numbers are carried from the
// source page; ordinals run across the whole document. Character spans index
// into the cleaned text of the chunk's page.
func (c *Chunker) Split(documentID string, pages []PageText) []model.Chunk {
	var chunks []model.Chunk
	ordinal := 0

	for _, p := range pages {
		cleaned := CleanText(p.Text)
		for _, span := range c.chunkPage(cleaned) {
			chunks = append(chunks, model.Chunk{
				ID:         uuid.New().String(),
				DocumentID: documentID,
				Page:       p.Page,
				Ordinal:    ordinal,
				Content:    span.text,
				CharStart:  span.start,
				CharEnd:    span.end,
			})
			ordinal++
		}
	}

	return chunks
}

type chunkSpan struct {
	text  string
	start int
	end   int
}

type sentenceSpan struct {
	text  string
	start int
}

func (c *Chunker) chunkPage(cleaned string) []chunkSpan {
	if len(cleaned) < c.minSize {
		return nil
	}
	if len(cleaned) <= c.size {
		return []chunkSpan{{text: cleaned, start: 0, end: len(cleaned)}}
	}

	sents := splitSentences(cleaned)
	var chunks []chunkSpan

	// first indexes the first sentence of the chunk being built; curLen is
	// the built length with separators; lastEnd guards against emitting a
	// trailing chunk that is a pure repeat of the previous one's overlap.
	first := 0
	curLen := 0
	lastEnd := 0

	emit := func(lastSentence int) {
		s := sents[first]
		end := sents[lastSentence].start + len(sents[lastSentence].text)
		if end-s.start >= c.minSize && end > lastEnd {
			chunks = append(chunks, chunkSpan{
				text:  cleaned[s.start:end],
				start: s.start,
				end:   end,
			})
			lastEnd = end
		}
	}

	for i := 0; i < len(sents); i++ {
		sLen := len(sents[i].text)

		if curLen > 0 && curLen+1+sLen > c.size {
			emit(i - 1)

			// Rebuild the head of the next chunk from trailing sentences
			// that fit inside the overlap budget.
			j := i
			total := 0
			for j > first {
				cand := total + len(sents[j-1].text)
				if total > 0 {
					cand++
				}
				if cand > c.overlap {
					break
				}
				total = cand
				j--
			}
			first = j
			curLen = total
		}

		if curLen > 0 {
			curLen++
		}
		curLen += sLen
	}

	emit(len(sents) - 1)

	return chunks
}

// splitSentences breaks cleaned text after sentence-ending punctuation.
// Offsets index into the input; joining the parts with single spaces
// reproduces it exactly.
func splitSentences(text string) []sentenceSpan {
	var sents []sentenceSpan
	start := 0

	for i := 0; i+1 < len(text); i++ {
		ch := text[i]
		if (ch == '.' || ch == '!' || ch == '?') && text[i+1] == ' ' {
			sents = append(sents, sentenceSpan{text: text[start : i+1], start: start})
			start = i + 2
		}
	}
	if start < len(text) {
		sents = append(sents, sentenceSpan{text: text[start:], start: start})
	}

	return sents
}
