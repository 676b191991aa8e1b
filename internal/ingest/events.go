package ingest

// EmbedPayload is the message published to the embed topic for one chunk.
type EmbedPayload struct {
	ID       string         `json:"id"`
	Source   string         `json:"source"`
	Title    string         `json:"title"`
	Category string         `json:"category,omitempty"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`

	CorrelationID string `json:"correlation_id"`
	RunID         string `json:"run_id,omitempty"`
}
