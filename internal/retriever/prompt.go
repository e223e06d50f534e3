package retriever

import (
	"fmt"
	"strings"

	"github.com/dgallion1/freightdoc/internal/store"
)

const systemPrompt = `You are a logistics document assistant. Answer questions ONLY from the provided document context.

STRICT RULES:
1. Answer ONLY from the provided context. Do not use any external knowledge.
2. If the information is not in the context, say "This information is not found in the document."
3. Be precise and concise. Quote the relevant part of the document when possible.
4. Do not speculate, infer, or assume anything beyond what the document explicitly states.
5. For numerical values (rates, weights, dates), give the exact values from the document.
6. If the question is ambiguous, mention every relevant piece of information from the context.`

// buildPrompt assembles the context block, each chunk tagged with its index.
func buildPrompt(question string, hits []store.Hit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = fmt.Sprintf("[Chunk %d] (relevance: %.2f)\n%s", h.Index, h.Score, h.Text)
	}

	var sb strings.Builder
	sb.WriteString("Document context:\n")
	sb.WriteString(strings.Join(parts, "\n\n---\n\n"))
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nUsing ONLY the document context above, give a clear and accurate answer. " +
		"If the information is not present in the context, state that it is not found in the document.")
	return sb.String()
}
