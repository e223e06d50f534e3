// Package terms tokenizes text into significant words for retrieval
// heuristics. The stopword list is data: callers may load their own.
package terms

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Set is a lower-cased word set.
type Set map[string]struct{}

// NewSet builds a Set from words, lower-casing each.
func NewSet(words ...string) Set {
	s := make(Set, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			s[w] = struct{}{}
		}
	}
	return s
}

func (s Set) Contains(w string) bool {
	_, ok := s[w]
	return ok
}

var defaultStopwords = []string{
	"a", "an", "the", "and", "or", "but", "not", "no", "nor", "so",
	"is", "are", "was", "were", "be", "been", "being", "am",
	"do", "does", "did", "has", "have", "had", "having",
	"i", "me", "my", "we", "our", "you", "your", "he", "she", "it", "its",
	"they", "them", "their", "her", "his", "this", "that", "these", "those",
	"what", "which", "who", "whom", "whose", "when", "where", "why", "how",
	"of", "in", "on", "at", "to", "for", "from", "by", "with", "about",
	"into", "over", "after", "before", "as", "if", "than", "then", "there",
	"can", "could", "will", "would", "should", "shall", "may", "might", "must",
	"all", "any", "some", "such", "only", "also", "just", "very", "most", "other",
	"one", "out", "up", "tell", "please", "know", "give", "show", "list",
	"document", "information", "note", "mentioned", "according", "based", "found",
}

// DefaultStopwords returns the built-in English stopword set.
func DefaultStopwords() Set {
	return NewSet(defaultStopwords...)
}

// LoadStopwords reads one word per line. Blank lines and lines starting
// with '#' are ignored.
func LoadStopwords(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stopwords: %w", err)
	}
	defer f.Close()

	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stopwords: %w", err)
	}
	return NewSet(words...), nil
}

// Tokenize lower-cases text and returns its runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Significant returns the distinct tokens of text that are at least two
// characters long and not stopwords, in order of first appearance.
func (s Set) Significant(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range Tokenize(text) {
		if len(tok) < 2 || s.Contains(tok) {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// Vocabulary returns every token of text as a Set.
func Vocabulary(text string) Set {
	return NewSet(Tokenize(text)...)
}
