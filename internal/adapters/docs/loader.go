// Package docs loads plain-text documents from a directory tree to build
// the initial system prompt, and fingerprints the tree for change
// detection.
package docs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/qna-labs/qna-service/internal/observability"
)

// ReadDirectory walks directoryPath and returns the contents of every
// regular file, in walk order. Dot-files are skipped; unreadable files are
// logged and skipped rather than failing the load.
func ReadDirectory(directoryPath string) ([]string, error) {
	log := observability.Logger()

	var documents []string
	err := filepath.WalkDir(directoryPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != directoryPath {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			log.Warn("skipping unreadable file", "path", path, "error", err)
			return nil
		}
		documents = append(documents, string(content))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", directoryPath, err)
	}

	return documents, nil
}

// RenderDocuments joins loaded documents into one prompt suffix.
func RenderDocuments(documents []string) string {
	return strings.Join(documents, "\n\n")
}
