package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Config controls chunking behavior. Sizes are measured in characters.
type Config struct {
	ChunkSize    int // Hard ceiling for a chunk.
	ChunkOverlap int // Characters repeated across a character-fallback cut.
	MinChunk     int // Minimum chunk size to emit.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    512,
		ChunkOverlap: 64,
		MinChunk:     20,
	}
}

func (c Config) normalize() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 512
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 4
	}
	if c.MinChunk <= 0 {
		c.MinChunk = 20
	}
	return c
}

// sectionHeaders is the logistics header vocabulary that opens a new section.
var sectionHeaders = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^shipment\s+(details|information|summary)`),
	regexp.MustCompile(`(?i)^shipper\s+(information|details|name)`),
	regexp.MustCompile(`(?i)^consignee\s+(information|details|name)`),
	regexp.MustCompile(`(?i)^carrier\s+(information|details|name)`),
	regexp.MustCompile(`(?i)^rate\s+(confirmation|details|summary|information)`),
	regexp.MustCompile(`(?i)^pickup\s+(details|information|date|time)`),
	regexp.MustCompile(`(?i)^delivery\s+(details|information|date|time)`),
	regexp.MustCompile(`(?i)^bill\s+of\s+lading`),
	regexp.MustCompile(`(?i)^freight\s+(charges|details|bill)`),
	regexp.MustCompile(`(?i)^special\s+(instructions|notes|requirements)`),
	regexp.MustCompile(`(?i)^equipment\s+(type|details|requirements)`),
	regexp.MustCompile(`(?i)^terms\s+and\s+conditions`),
	regexp.MustCompile(`(?i)^payment\s+(terms|details)`),
	regexp.MustCompile(`(?i)^(insurance|claims|liability)`),
	regexp.MustCompile(`(?i)^(commodity|cargo|goods)\s`),
	regexp.MustCompile(`(?i)^(origin|destination)\s`),
	regexp.MustCompile(`(?i)^(weight|dimensions)\s`),
	regexp.MustCompile(`^#{1,3}\s`),
}

// IsSectionHeader reports whether a line opens a new section.
func IsSectionHeader(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	for _, re := range sectionHeaders {
		if re.MatchString(line) {
			return true
		}
	}
	n := utf8.RuneCountInString(line)
	return n > 3 && n < 60 && isUpper(line)
}

// isUpper reports whether s has at least one letter and no lower-case letters.
func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// Split breaks document text into ordered retrieval chunks. Identical text and
// configuration always produce identical output.
func Split(text string, cfg Config) []string {
	cfg = cfg.normalize()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	emit := func(s string) {
		if utf8.RuneCountInString(strings.TrimSpace(s)) >= cfg.MinChunk {
			chunks = append(chunks, s)
		}
	}

	for _, section := range splitSections(text) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if utf8.RuneCountInString(section) <= cfg.ChunkSize {
			emit(section)
			continue
		}
		for _, unit := range packSentences(section, cfg) {
			emit(unit)
		}
	}
	return chunks
}

// splitSections groups lines so that every header line starts a new section.
func splitSections(text string) []string {
	var sections []string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		if IsSectionHeader(line) && len(current) > 0 {
			sections = append(sections, strings.Join(current, "\n"))
			current = nil
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}
	return sections
}

// packSentences greedily joins sentences into units no longer than the
// ceiling. A sentence that alone exceeds the ceiling is cut by characters.
func packSentences(section string, cfg Config) []string {
	var units []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			units = append(units, strings.TrimSpace(current.String()))
			current.Reset()
			currentLen = 0
		}
	}

	for _, sent := range SplitSentences(section) {
		sentLen := utf8.RuneCountInString(sent)
		if currentLen > 0 && currentLen+1+sentLen <= cfg.ChunkSize {
			current.WriteString(" ")
			current.WriteString(sent)
			currentLen += 1 + sentLen
			continue
		}
		flush()
		if sentLen > cfg.ChunkSize {
			units = append(units, splitChars(sent, cfg.ChunkSize, cfg.ChunkOverlap)...)
			continue
		}
		current.WriteString(sent)
		currentLen = sentLen
	}
	flush()
	return units
}

// SplitSentences cuts text after '.', '!' or '?' when followed by whitespace.
// The whitespace between sentences is dropped.
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				sentences = append(sentences, s)
			}
			j := i + 1
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			start = j
			i = j - 1
		}
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// splitChars cuts s into pieces of size runes, each starting size-overlap
// runes after the previous one, so neighbours share exactly overlap runes.
func splitChars(s string, size, overlap int) []string {
	runes := []rune(s)
	step := size - overlap
	if step <= 0 {
		step = size
	}
	var pieces []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return pieces
}
