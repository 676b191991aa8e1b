package weaviate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"softarchitect/apps/ingest/internal/retrieval"
	"softarchitect/apps/ingest/internal/vector"
)

// Store keeps knowledge base chunks in one Weaviate class.
type Store struct {
	client    *weaviate.Client
	className string
}

func NewStore(client *weaviate.Client, className string) *Store {
	if className == "" {
		className = vector.DefaultClass
	}
	return &Store{client: client, className: className}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, vector.NewSchemaAdapter(s.client), s.className)
}

// Upsert writes one chunk under id. The batch endpoint replaces an existing
// object with the same id, so repeated ingestion does not duplicate chunks.
func (s *Store) Upsert(ctx context.Context, id, text string, metadata map[string]any, vec []float32) error {
	props := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		props[k] = v
	}
	props["content"] = text

	resp, err := s.client.Batch().ObjectsBatcher().
		WithObjects(&models.Object{
			Class:      s.className,
			ID:         strfmt.UUID(id),
			Properties: props,
			Vector:     vec,
		}).
		Do(ctx)
	if err != nil {
		return err
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("upsert %s: %s", id, r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// DeleteBySource removes every chunk whose filepath equals source.
func (s *Store) DeleteBySource(ctx context.Context, source string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(s.className).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"filepath"}).
			WithOperator(filters.Equal).
			WithValueText(source)).
		Do(ctx)
	return err
}

func (s *Store) Search(ctx context.Context, query string, vec []float32, alpha float32, limit int, where map[string]interface{}) ([]retrieval.SearchResult, error) {
	hybrid := s.client.GraphQL().HybridArgumentBuilder().
		WithQuery(query).
		WithVector(vec).
		WithAlpha(alpha)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "title"},
		{Name: "filepath"},
		{Name: "category"},
		{Name: "tags"},
		{Name: "chunk_index"},
		{Name: "total_chunks"},
		{Name: "header_level"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "score"}}},
	}

	get := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithHybrid(hybrid).
		WithLimit(limit).
		WithFields(fields...)
	if w := buildWhere(where); w != nil {
		get = get.WithWhere(w)
	}

	res, err := get.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	var results []retrieval.SearchResult
	data, _ := res.Data["Get"].(map[string]interface{})
	chunks, _ := data[s.className].([]interface{})
	for _, c := range chunks {
		props, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		result := retrieval.SearchResult{Metadata: make(map[string]interface{})}
		for k, v := range props {
			switch k {
			case "content":
				result.Content, _ = v.(string)
			case "_additional":
				additional, _ := v.(map[string]interface{})
				result.ID, _ = additional["id"].(string)
				result.Score = parseScore(additional["score"])
			case "chunk_index", "total_chunks", "header_level":
				if f, ok := v.(float64); ok {
					result.Metadata[k] = int(f)
				}
			default:
				if v != nil {
					result.Metadata[k] = v
				}
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(s.className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	agg, _ := res.Data["Aggregate"].(map[string]interface{})
	groups, _ := agg[s.className].([]interface{})
	if len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]interface{})
	meta, _ := group["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

func buildWhere(where map[string]interface{}) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder
	for k, v := range where {
		if s, ok := v.(string); ok && s != "" {
			operands = append(operands, filters.Where().
				WithPath([]string{k}).
				WithOperator(filters.Equal).
				WithValueText(s))
		}
	}
	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(operands)
	}
}

// Weaviate reports hybrid scores as strings; older servers used numbers.
func parseScore(v interface{}) float32 {
	switch s := v.(type) {
	case string:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return 0
		}
		return float32(f)
	case float64:
		return float32(s)
	}
	return 0
}
