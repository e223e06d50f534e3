package parser

import (
	"strings"
	"testing"
)

func TestMarkdownParser_HeadingHierarchy(t *testing.T) {
	input := `# Rate Confirmation

Load Number: LD-48213

## Shipper

Acme Manufacturing Inc

### Dock

North dock, door 7.

## Consignee

Midwest Distribution Co
`
	p := &MarkdownParser{}
	tree, err := p.Parse(strings.NewReader(input), "ratecon.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "ratecon" {
		t.Errorf("expected title %q, got %q", "ratecon", tree.Title)
	}
	if len(tree.Children) != 1 {
		t.Fatalf("expected 1 top-level child, got %d", len(tree.Children))
	}

	h1 := tree.Children[0]
	if h1.Title != "Rate Confirmation" || h1.Text != "Load Number: LD-48213" {
		t.Errorf("unexpected h1 %q / %q", h1.Title, h1.Text)
	}
	if len(h1.Children) != 2 {
		t.Fatalf("expected 2 h2 children, got %d", len(h1.Children))
	}
	shipper := h1.Children[0]
	if shipper.Title != "Shipper" || len(shipper.Children) != 1 {
		t.Fatalf("unexpected shipper section %+v", shipper)
	}
	if shipper.Children[0].Text != "North dock, door 7." {
		t.Errorf("dock text = %q", shipper.Children[0].Text)
	}
	if h1.Children[1].Title != "Consignee" {
		t.Errorf("expected %q, got %q", "Consignee", h1.Children[1].Title)
	}
}

func TestMarkdownParser_ParagraphTextNotDuplicated(t *testing.T) {
	p := &MarkdownParser{}
	tree, err := p.Parse(strings.NewReader("Carrier Name: FastFreight\nTotal Rate: $3,575.00\n"), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(tree.Children))
	}
	want := "Carrier Name: FastFreight\nTotal Rate: $3,575.00"
	if got := tree.Children[0].Text; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
}

func TestMarkdownParser_CodeBlocksAndLists(t *testing.T) {
	input := "# Notes\n\n- Driver must call ahead\n- No touch freight\n\n```\nREF 9912\n```\n"
	p := &MarkdownParser{}
	tree, err := p.Parse(strings.NewReader(input), "notes.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := tree.Children[0].Text
	for _, want := range []string{"Driver must call ahead", "No touch freight", "REF 9912"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in %q", want, text)
		}
	}
}

func TestMarkdownParser_LeadingTextKept(t *testing.T) {
	p := &MarkdownParser{}
	tree, err := p.Parse(strings.NewReader("BOL 5521\n\n# Items\n\nPallets"), "bol.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tree.PlainText(); got != "BOL 5521\n\n# Items\n\nPallets" {
		t.Errorf("PlainText = %q", got)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	tree, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Children) != 0 {
		t.Errorf("expected 0 children for empty input, got %d", len(tree.Children))
	}
}

func TestMarkdownParser_TitleStripping(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"readme.md", "readme"},
		{"notes.markdown", "notes"},
		{"uploads/ratecon.md", "ratecon"},
	}
	p := &MarkdownParser{}
	for _, tt := range tests {
		tree, err := p.Parse(strings.NewReader("text"), tt.filename)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.filename, err)
		}
		if tree.Title != tt.want {
			t.Errorf("filename=%q: expected title %q, got %q", tt.filename, tt.want, tree.Title)
		}
	}
}
