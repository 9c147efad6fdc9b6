package docs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// HashFile returns the xxhash64 digest of one file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// HashDirectory fingerprints a whole directory tree: paths and names are
// folded in sorted order so the digest is stable across walk ordering, and
// each file contributes its name and content hash.
func HashDirectory(directory string) (string, error) {
	h := xxhash.New()

	var paths []string
	err := filepath.WalkDir(directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking %s: %w", directory, err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
		h.WriteString(path)
		if info.IsDir() {
			continue
		}
		fileHash, err := HashFile(path)
		if err != nil {
			return "", err
		}
		h.WriteString(fileHash)
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}
