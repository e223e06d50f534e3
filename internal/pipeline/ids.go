package pipeline

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
)

// documentNamespace scopes name-based document ids.
var documentNamespace = uuid.MustParse("6f1c2a4e-93b7-4d0a-9a51-2f8e0c7d4b13")

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// DocumentID derives the stable id for a file: re-uploading the same bytes
// under the same name yields the same id.
func DocumentID(filename, contentHash string) string {
	return uuid.NewSHA1(documentNamespace, []byte(filename+"\x00"+contentHash)).String()
}
