package config

const (
	// TopicIngestEmbed is the NSQ topic for chunk embedding tasks.
	TopicIngestEmbed = "ingest.embed"

	// ChannelEmbedder is the NSQ channel the embedding workers share.
	ChannelEmbedder = "embedder"
)
