package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/freightdoc/internal/doctree"
)

// CSVParser handles CSV exports. Each data row becomes a block of
// "Header: value" lines, the layout the label patterns read best.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: baseTitle(filename)}
	if len(records) == 0 {
		return tree, nil
	}

	headers := records[0]
	for _, row := range records[1:] {
		var lines []string
		for j, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if j < len(headers) && strings.TrimSpace(headers[j]) != "" {
				lines = append(lines, strings.TrimSpace(headers[j])+": "+cell)
			} else {
				lines = append(lines, cell)
			}
		}
		if len(lines) > 0 {
			tree.Children = append(tree.Children, &doctree.DocNode{Text: strings.Join(lines, "\n")})
		}
	}
	return tree, nil
}
