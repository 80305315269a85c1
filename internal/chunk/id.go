package chunk

import (
	"fmt"

	"github.com/google/uuid"
)

// chunkNamespace is the fixed UUID namespace for chunk identifiers.
// The vector store requires UUID point IDs, so chunk IDs are UUIDv5
// digests: deterministic for a given (path, span) and unique across
// files because the path participates in the hash.
var chunkNamespace = uuid.MustParse("8f3c1e6a-52a4-4c7b-9d2e-4b7f6a1c9e05")

// ChunkID derives the stable identifier for a (filePath, startLine,
// endLine) span. Equal spans always produce equal IDs; re-running the
// chunker on unchanged input yields identical IDs.
func ChunkID(filePath string, startLine, endLine int) string {
	key := fmt.Sprintf("%s:%d:%d", filePath, startLine, endLine)
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}
