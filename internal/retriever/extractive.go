package retriever

import (
	"strings"

	"github.com/dgallion1/freightdoc/internal/chunker"
	"github.com/dgallion1/freightdoc/internal/llm"
	"github.com/dgallion1/freightdoc/internal/terms"
)

const (
	maxExtractiveSentences = 3
	extractivePreviewLen   = 500
)

// extractiveAnswer selects the sentences of chunk sharing the most
// significant terms with question. All sentences tied at the best score are
// kept, at most three, in document order. With no overlap at all the start
// of the chunk is returned.
func extractiveAnswer(question, chunk string, sw terms.Set) string {
	qTerms := sw.Significant(question)

	var sentences []string
	for _, line := range strings.Split(chunk, "\n") {
		sentences = append(sentences, chunker.SplitSentences(line)...)
	}

	best := 0
	scores := make([]int, len(sentences))
	for i, s := range sentences {
		vocab := terms.Vocabulary(s)
		for _, t := range qTerms {
			if vocab.Contains(t) {
				scores[i]++
			}
		}
		best = max(best, scores[i])
	}

	if best == 0 {
		return llm.Truncate(strings.TrimSpace(chunk), extractivePreviewLen)
	}

	var picked []string
	for i, s := range sentences {
		if scores[i] == best {
			picked = append(picked, s)
			if len(picked) == maxExtractiveSentences {
				break
			}
		}
	}
	return strings.Join(picked, " ")
}
