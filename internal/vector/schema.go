package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

// DefaultClass is the Weaviate class holding knowledge base chunks.
const DefaultClass = "KnowledgeChunk"

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// ChunkProperties mirrors the keys of a flattened chunk, plus its content.
func ChunkProperties() []*models.Property {
	return []*models.Property{
		{Name: "content", DataType: []string{"text"}},
		{Name: "title", DataType: []string{"text"}},
		{Name: "filepath", DataType: []string{"text"}, Tokenization: "field"}, // exact match for deletes
		{Name: "filename", DataType: []string{"text"}, Tokenization: "field"},
		{Name: "category", DataType: []string{"text"}, Tokenization: "field"},
		{Name: "tags", DataType: []string{"text"}},
		{Name: "size_bytes", DataType: []string{"int"}},
		{Name: "modified_at", DataType: []string{"date"}},
		{Name: "depth", DataType: []string{"int"}},
		{Name: "chunk_index", DataType: []string{"int"}},
		{Name: "total_chunks", DataType: []string{"int"}},
		{Name: "char_count", DataType: []string{"int"}},
		{Name: "header_level", DataType: []string{"int"}},
	}
}

// EnsureSchema creates className if needed and adds any missing properties.
func EnsureSchema(ctx context.Context, client SchemaClient, className string) error {
	if className == "" {
		className = DefaultClass
	}
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return err
	}

	properties := ChunkProperties()

	if !exists {
		class := &models.Class{
			Class:       className,
			Description: "A chunk of a knowledge base document",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	// Class exists, check for missing properties
	class, err := client.GetClass(ctx, className)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, className, p); err != nil {
				return err
			}
		}
	}

	return nil
}
