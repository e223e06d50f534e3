package pipeline

import (
	"testing"

	"github.com/google/uuid"
)

func TestDocumentIDStable(t *testing.T) {
	h := ContentHashHex([]byte("Total Rate: $3,575.00 USD"))
	a := DocumentID("rc.pdf", h)
	if a != DocumentID("rc.pdf", h) {
		t.Error("expected identical input to give identical id")
	}
	if a == DocumentID("rc2.pdf", h) {
		t.Error("expected filename to change the id")
	}
	if a == DocumentID("rc.pdf", ContentHashHex([]byte("Total Rate: $3,576.00 USD"))) {
		t.Error("expected content to change the id")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("id %q is not a UUID: %v", a, err)
	}
}

func TestContentHashHex(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := ContentHashHex([]byte("abc")); got != want {
		t.Errorf("ContentHashHex = %s, want %s", got, want)
	}
}
