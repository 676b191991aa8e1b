package ingest

import (
	"github.com/google/uuid"

	"softarchitect/apps/ingest/internal/document"
)

var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("softarchitect:knowledge-chunk"))

// ChunkID derives a stable UUID from a chunk's source path and content, so
// re-ingesting an unchanged file overwrites its objects in place.
func ChunkID(source, content string) string {
	return uuid.NewSHA1(chunkNamespace, []byte(source+":"+content)).String()
}

func NewRecord(c document.Chunk) Record {
	source := ""
	if c.Metadata != nil {
		source = c.Metadata.FilePath
	}
	return Record{
		ID:       ChunkID(source, c.Content),
		Text:     c.Content,
		Metadata: c.Flatten(),
	}
}

func toRecords(chunks []document.Chunk) []Record {
	out := make([]Record, len(chunks))
	for i, c := range chunks {
		out[i] = NewRecord(c)
	}
	return out
}

func metaString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
