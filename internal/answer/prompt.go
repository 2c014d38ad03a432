package answer

import (
	"fmt"
	"strings"

	"github.com/localdocs/localdocs-cli/internal/search"
	"github.com/localdocs/localdocs-cli/internal/search/index"
)

const systemPrompt = `You are a careful assistant that answers questions using ONLY the provided context.

Rules:
- Use only information found in the numbered sources. Never use outside knowledge.
- Cite the sources that support each claim in square brackets, like [Source 2].
- If the sources do not contain enough information to answer, say so plainly instead of guessing.
- Keep the answer concise.`

// buildUserPrompt lays out the retrieved chunks as numbered source blocks
// and puts the question last. The numbers here are the same numbers the
// caller will show next to the sources, so citations line up.
func buildUserPrompt(question string, results []search.Result) string {
	var b strings.Builder
	b.WriteString("Context:\n\n")
	for _, r := range results {
		fmt.Fprintf(&b, "[Source %d] %s%s\n%s\n\n", r.SourceNum, r.Chunk.FileName(), locationSuffix(r.Chunk), r.Chunk.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func locationSuffix(c index.ChunkRecord) string {
	switch {
	case c.Page > 0 && c.Section != "":
		return fmt.Sprintf(" (page %d, %s)", c.Page, c.Section)
	case c.Page > 0:
		return fmt.Sprintf(" (page %d)", c.Page)
	case c.Section != "":
		return fmt.Sprintf(" (%s)", c.Section)
	}
	return ""
}
