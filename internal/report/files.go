package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/policyscan/internal/model"
)

const (
	// DefaultLinksFile is the file name of the external links output.
	DefaultLinksFile = "ext_links.json"

	// DefaultWordsFile is the file name of the word count output.
	DefaultWordsFile = "word_count.json"
)

// WriteLinksFile writes links to path as a JSON array of strings.
// A nil or empty list is written as [].
func WriteLinksFile(path string, links model.LinkList) error {
	if links == nil {
		links = model.LinkList{}
	}
	return writeJSONFile(path, links)
}

// WriteWordCountFile writes counts to path as a JSON object mapping each
// word to its count. Keys are written in sorted order.
func WriteWordCountFile(path string, counts model.WordCount) error {
	if counts == nil {
		counts = model.WordCount{}
	}
	return writeJSONFile(path, counts)
}

// writeJSONFile creates or truncates path and writes v as JSON. Missing
// parent directories are created. HTML characters are not escaped, so
// URLs containing & stay readable.
func writeJSONFile(path string, v any) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
