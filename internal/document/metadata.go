package document

import (
	"io/fs"
	"path/filepath"
	"strings"

	"softarchitect/apps/ingest/internal/text"
)

// Extractor derives file level metadata relative to a knowledge base root.
type Extractor struct {
	root string
}

func NewExtractor(root string) *Extractor {
	return &Extractor{root: root}
}

// Extract builds the metadata for the file at path. info must describe that
// file and content is its raw text.
func (e *Extractor) Extract(path string, info fs.FileInfo, content string) (*Metadata, error) {
	rel, err := filepath.Rel(e.root, path)
	if err != nil {
		return nil, ValidationError(path, ReasonOutsideRoot, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return nil, ValidationError(path, ReasonOutsideRoot, nil)
	}

	parts := strings.Split(rel, "/")
	fileName := filepath.Base(path)
	stem := strings.TrimSuffix(fileName, filepath.Ext(fileName))

	meta := &Metadata{
		Title:      ExtractTitle(content, stem),
		FilePath:   rel,
		FileName:   fileName,
		SizeBytes:  info.Size(),
		ModifiedAt: info.ModTime(),
		Depth:      len(parts),
		Tags:       NewTagSet(),
	}
	if len(parts) > 1 {
		meta.Category = parts[0]
		meta.Tags.Add(parts[0])
	}
	if strings.Contains(stem, "_") {
		for _, t := range strings.Split(strings.ToLower(stem), "_") {
			meta.Tags.Add(t)
		}
	}
	return meta, nil
}

// ExtractTitle returns the first H1 found before any body text, falling back
// to a title built from stem.
func ExtractTitle(content, stem string) string {
	for line := range strings.Lines(content) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			if title := text.CleanHeader(line[2:]); title != "" {
				return title
			}
			break
		}
		if line != "" && !strings.HasPrefix(line, "#") {
			break
		}
	}
	return text.TitleFromName(stem)
}
