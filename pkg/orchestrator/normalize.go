package orchestrator

import (
	"strings"

	"github.com/nestor-ai/nestor/pkg/llms"
)

// normalizeIncrement renders one stream chunk as display text. The
// incremental path only produces the text shape; anything else contributes
// nothing to the stream.
func normalizeIncrement(chunk llms.StreamChunk) (string, bool) {
	if chunk.Type != llms.ChunkText {
		return "", false
	}
	return chunk.Text, chunk.Text != ""
}

// normalizeContent renders complete agent content, reporting whether any
// usable text was produced. The shape handling itself lives on the content
// union; this adds only the blank check shared by the batch path.
func normalizeContent(content llms.MessageContent) (string, bool) {
	text := strings.TrimSpace(content.Flatten())
	return text, text != ""
}
