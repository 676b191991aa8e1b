package document

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxChunkSize = 2000
	DefaultMinChunkSize = 500
)

var headerLevelRe = regexp.MustCompile(`^(#{1,6})\s`)

// Splitter breaks cleaned markdown into chunks along its header structure.
// Sizes are measured in characters (runes).
type Splitter struct {
	maxChunkSize int
	minChunkSize int
}

func NewSplitter(maxChunkSize, minChunkSize int) *Splitter {
	return &Splitter{maxChunkSize: maxChunkSize, minChunkSize: minChunkSize}
}

// Split divides content into chunks sharing meta.
//
// Sections start at each H2 header, or at each H3 header when the document
// has no H2. Sections longer than the maximum are split on blank lines, and
// pieces shorter than the minimum are dropped. TotalChunks counts the kept
// pieces of the originating section. When nothing survives, the whole
// trimmed content becomes a single chunk so no non-empty document is lost.
func (s *Splitter) Split(content string, meta *Metadata) []Chunk {
	sections := splitByHeader(content, 2)
	if len(sections) == 0 {
		sections = splitByHeader(content, 3)
	}
	if len(sections) == 0 && strings.TrimSpace(content) != "" {
		sections = []string{content}
	}

	var chunks []Chunk
	for _, section := range sections {
		pieces := []string{section}
		if runeLen(section) > s.maxChunkSize {
			pieces = splitByParagraphs(section)
		}

		kept := make([]string, 0, len(pieces))
		for _, p := range pieces {
			p = strings.TrimSpace(p)
			if p == "" || runeLen(p) < s.minChunkSize {
				continue
			}
			kept = append(kept, p)
		}

		for _, p := range kept {
			chunks = append(chunks, Chunk{
				Content:     p,
				Metadata:    meta,
				ChunkIndex:  len(chunks),
				TotalChunks: len(kept),
				CharCount:   runeLen(p),
				HeaderLevel: HeaderLevel(p),
			})
		}
	}

	if len(chunks) == 0 {
		trimmed := strings.TrimSpace(content)
		if trimmed == "" {
			return nil
		}
		return []Chunk{{
			Content:     trimmed,
			Metadata:    meta,
			TotalChunks: 1,
			CharCount:   runeLen(trimmed),
		}}
	}
	return chunks
}

// splitByHeader groups lines into sections that begin at headers of exactly
// level. Text before the first such header forms its own section. It returns
// nil when no header of that level exists.
func splitByHeader(content string, level int) []string {
	prefix := strings.Repeat("#", level) + " "

	var (
		sections []string
		current  []string
		found    bool
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		if section := strings.Join(current, "\n"); strings.TrimSpace(section) != "" {
			sections = append(sections, section)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, prefix) {
			found = true
			flush()
		}
		current = append(current, line)
	}
	if !found {
		return nil
	}
	flush()
	return sections
}

func splitByParagraphs(content string) []string {
	var out []string
	for _, p := range strings.Split(content, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// HeaderLevel returns the level of the markdown header on the first line of
// content, or 0 when that line is not a header.
func HeaderLevel(content string) int {
	firstLine, _, _ := strings.Cut(content, "\n")
	m := headerLevelRe.FindStringSubmatch(firstLine)
	if m == nil {
		return 0
	}
	return len(m[1])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
