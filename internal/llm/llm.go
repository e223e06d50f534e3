// Package llm provides text generation clients. A nil Generator means the
// capability is not configured and callers must use their fallbacks.
package llm

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Request is a single-turn generation request.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Generator produces a completion for a single-turn request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// StripCodeBlock removes a surrounding markdown code fence, if any.
func StripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// Truncate cuts s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
