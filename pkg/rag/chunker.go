package rag

import (
	"fmt"
	"strings"

	"github.com/nestor-ai/nestor/pkg/utils"
)

const (
	// chunkTokenBudget caps the tokens of any unit sent to the embedder.
	chunkTokenBudget = 512
	// chunkTokenOverlap is carried from the tail of one chunk into the next
	// so boundary sentences stay retrievable from either side.
	chunkTokenOverlap = 64
)

// Chunker splits oversized units at paragraph and sentence boundaries.
type Chunker struct {
	counter *utils.TokenCounter
	budget  int
	overlap int
}

// NewChunker returns a chunker measuring with the given counter.
func NewChunker(counter *utils.TokenCounter) *Chunker {
	return &Chunker{
		counter: counter,
		budget:  chunkTokenBudget,
		overlap: chunkTokenOverlap,
	}
}

// Chunk splits every unit exceeding the token budget, preserving locators
// with a ", part N" suffix. Units within budget pass through unchanged.
func (c *Chunker) Chunk(units []Unit) []Unit {
	out := make([]Unit, 0, len(units))
	for _, unit := range units {
		if c.counter.Count(unit.Content) <= c.budget {
			out = append(out, unit)
			continue
		}
		for i, part := range c.split(unit.Content) {
			out = append(out, Unit{
				Source:  unit.Source,
				Locator: fmt.Sprintf("%s, part %d", unit.Locator, i+1),
				Content: part,
			})
		}
	}
	return out
}

// split packs boundary segments greedily into budget-sized chunks, seeding
// each chunk after the first with the previous chunk's tail.
func (c *Chunker) split(text string) []string {
	segments := c.segments(text)

	var chunks []string
	var current []string
	currentTokens := 0
	fresh := 0 // segments in current that are not carried-over overlap

	for _, seg := range segments {
		segTokens := c.counter.Count(seg)
		if currentTokens+segTokens > c.budget && fresh > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current, currentTokens = c.overlapTail(current)
			fresh = 0
		}
		current = append(current, seg)
		currentTokens += segTokens
		fresh++
	}
	if fresh > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}

// segments breaks text into paragraphs, oversized paragraphs into sentences,
// and oversized sentences into word runs, so every segment fits the budget.
func (c *Chunker) segments(text string) []string {
	var segments []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if c.counter.Count(para) <= c.budget {
			segments = append(segments, para)
			continue
		}
		for _, sentence := range splitSentences(para) {
			if c.counter.Count(sentence) <= c.budget {
				segments = append(segments, sentence)
				continue
			}
			segments = append(segments, c.hardSplit(sentence)...)
		}
	}
	return segments
}

// overlapTail returns the trailing segments of a chunk worth roughly the
// overlap budget, with their token count.
func (c *Chunker) overlapTail(segments []string) ([]string, int) {
	var tail []string
	tokens := 0
	for i := len(segments) - 1; i >= 0; i-- {
		segTokens := c.counter.Count(segments[i])
		if tokens+segTokens > c.overlap && len(tail) > 0 {
			break
		}
		tail = append([]string{segments[i]}, tail...)
		tokens += segTokens
		if tokens >= c.overlap {
			break
		}
	}
	return tail, tokens
}

// hardSplit cuts text into word runs that fit the budget. Last resort for
// sentences with no usable boundaries.
func (c *Chunker) hardSplit(text string) []string {
	var out []string
	var current []string
	tokens := 0
	for _, word := range strings.Fields(text) {
		wordTokens := c.counter.Count(word)
		if tokens+wordTokens > c.budget && len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current, tokens = nil, 0
		}
		current = append(current, word)
		tokens += wordTokens
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// splitSentences breaks a paragraph after sentence-ending punctuation.
func splitSentences(para string) []string {
	var out []string
	for _, part := range strings.SplitAfter(para, ". ") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
