package document

import (
	"sort"
	"strings"
	"time"
)

// Metadata describes one source file of the knowledge base. It is shared by
// every chunk produced from that file.
type Metadata struct {
	Title      string
	FilePath   string // relative to the knowledge base root, forward slashes
	FileName   string
	SizeBytes  int64
	ModifiedAt time.Time
	Depth      int
	Category   string // first path segment, empty for root-level files
	Tags       TagSet
}

func (m *Metadata) HasCategory() bool {
	return m.Category != ""
}

// TagSet is an unordered set of tags. Tags are compared as given.
type TagSet map[string]struct{}

func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s.Add(t)
	}
	return s
}

// Add inserts tag. Empty tags are ignored.
func (s TagSet) Add(tag string) {
	if tag == "" {
		return
	}
	s[tag] = struct{}{}
}

func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

func (s TagSet) Len() int {
	return len(s)
}

func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Chunk is one retrievable piece of a document.
type Chunk struct {
	Content     string
	Metadata    *Metadata
	ChunkIndex  int
	TotalChunks int
	CharCount   int
	HeaderLevel int // 0 when the chunk does not open with a markdown header
}

func (c Chunk) HasHeader() bool {
	return c.HeaderLevel > 0
}

// Flatten renders the chunk's metadata as primitive values, the shape vector
// stores accept. Tags are joined with commas in sorted order; category and
// header_level are omitted when absent.
func (c Chunk) Flatten() map[string]any {
	out := map[string]any{
		"chunk_index":  c.ChunkIndex,
		"total_chunks": c.TotalChunks,
		"char_count":   c.CharCount,
	}
	if c.HasHeader() {
		out["header_level"] = c.HeaderLevel
	}

	m := c.Metadata
	if m == nil {
		return out
	}
	out["title"] = m.Title
	out["filepath"] = m.FilePath
	out["filename"] = m.FileName
	out["size_bytes"] = m.SizeBytes
	out["modified_at"] = m.ModifiedAt.UTC().Format(time.RFC3339)
	out["depth"] = m.Depth
	if m.HasCategory() {
		out["category"] = m.Category
	}
	if m.Tags.Len() > 0 {
		out["tags"] = strings.Join(m.Tags.Sorted(), ",")
	}
	return out
}
