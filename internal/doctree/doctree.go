// Package doctree is the structured form of an uploaded file before it is
// flattened into the plain text the pipeline works on.
package doctree

import "strings"

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Text content of this node (may be empty for container nodes)
	Page     int        // Source page (0 if N/A)
	Children []*DocNode // Subsections
}

// PlainText renders the tree as text. Headings become markdown-style lines
// ("#" per nesting level, at most three) so section boundaries survive
// flattening; blocks are separated by a blank line.
func (t *DocTree) PlainText() string {
	var blocks []string
	var walk func(nodes []*DocNode, depth int)
	walk = func(nodes []*DocNode, depth int) {
		for _, n := range nodes {
			if title := strings.TrimSpace(n.Title); title != "" {
				blocks = append(blocks, strings.Repeat("#", min(depth, 3))+" "+title)
			}
			if text := strings.TrimSpace(n.Text); text != "" {
				blocks = append(blocks, text)
			}
			walk(n.Children, depth+1)
		}
	}
	walk(t.Children, 1)
	return strings.Join(blocks, "\n\n")
}

// Sections counts titled nodes.
func (t *DocTree) Sections() int {
	count := 0
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, n := range nodes {
			if n.Title != "" {
				count++
			}
			walk(n.Children)
		}
	}
	walk(t.Children)
	return count
}
