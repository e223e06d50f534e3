package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/freightdoc/internal/doctree"
)

// TextParser handles plain text files. Lines are kept as-is since label
// layouts depend on them; blank lines separate blocks. Invalid UTF-8 is
// dropped.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	tree := &doctree.DocTree{Title: baseTitle(filename)}
	var current []string
	flush := func() {
		if len(current) > 0 {
			tree.Children = append(tree.Children, &doctree.DocNode{Text: strings.Join(current, "\n")})
			current = nil
		}
	}

	for scanner.Scan() {
		line := strings.TrimRight(strings.ToValidUTF8(scanner.Text(), ""), " \t\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return tree, nil
}
