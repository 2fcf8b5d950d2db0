// Package objectkey generates blob-store object keys for uploads.
package objectkey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for object key generation strategies.
type Generator interface {
	// GenerateKey creates the blob-store key for an uploaded file.
	GenerateKey(objectID uuid.UUID, fileName string) string
}

// UUIDPrefixGenerator produces "{uuid}-{filename}" keys. The UUID prefix
// guarantees no key collision even when two uploads share a filename,
// which is what makes the unique index on the key column safe.
type UUIDPrefixGenerator struct{}

func NewUUIDPrefixGenerator() *UUIDPrefixGenerator {
	return &UUIDPrefixGenerator{}
}

func (g *UUIDPrefixGenerator) GenerateKey(objectID uuid.UUID, fileName string) string {
	return fmt.Sprintf("%s-%s", objectID, sanitizeFileName(fileName))
}

// CustomFuncGenerator allows callers to provide their own key function.
type CustomFuncGenerator struct {
	GenerateFunc func(objectID uuid.UUID, fileName string) string
}

func (g *CustomFuncGenerator) GenerateKey(objectID uuid.UUID, fileName string) string {
	return g.GenerateFunc(objectID, fileName)
}

// sanitizeFileName replaces characters that are problematic in object
// keys and filesystem paths.
func sanitizeFileName(fileName string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(fileName)
}
