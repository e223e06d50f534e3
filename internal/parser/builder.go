package parser

import (
	"strings"

	"github.com/dgallion1/freightdoc/internal/doctree"
)

// treeBuilder nests sections by heading level as a document is walked in
// order. Text goes to the innermost open section.
type treeBuilder struct {
	root    *doctree.DocNode
	stack   []builderEntry
	pending []string
}

type builderEntry struct {
	node  *doctree.DocNode
	level int
}

func newTreeBuilder() *treeBuilder {
	root := &doctree.DocNode{}
	return &treeBuilder{root: root, stack: []builderEntry{{node: root}}}
}

// heading opens a section, closing any open sections at level or deeper.
func (b *treeBuilder) heading(title string, level int) {
	b.flush()
	node := &doctree.DocNode{Title: title}
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	parent := b.stack[len(b.stack)-1].node
	parent.Children = append(parent.Children, node)
	b.stack = append(b.stack, builderEntry{node: node, level: level})
}

// text appends a block to the current section.
func (b *treeBuilder) text(s string) {
	if s = strings.TrimSpace(s); s != "" {
		b.pending = append(b.pending, s)
	}
}

func (b *treeBuilder) flush() {
	if len(b.pending) == 0 {
		return
	}
	top := b.stack[len(b.stack)-1].node
	joined := strings.Join(b.pending, "\n\n")
	if top.Text != "" {
		top.Text += "\n\n" + joined
	} else {
		top.Text = joined
	}
	b.pending = nil
}

// tree finishes the walk. Text before the first heading becomes a leading
// untitled block.
func (b *treeBuilder) tree(title string) *doctree.DocTree {
	b.flush()
	t := &doctree.DocTree{Title: title}
	if b.root.Text != "" {
		t.Children = append(t.Children, &doctree.DocNode{Text: b.root.Text})
	}
	t.Children = append(t.Children, b.root.Children...)
	return t
}
