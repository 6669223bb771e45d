package domain

// KeyPrefix namespaces every key the application writes to a shared store.
const KeyPrefix = "nightreign:"

// Document index layout.
const (
	ChunkKeyPrefix = KeyPrefix + "chunk:"
	ChunkIndexName = KeyPrefix + "chunks:idx"
)

// VectorConfig holds vectorization settings shared by ingestion and querying.
type VectorConfig struct {
	Model          string
	Dimensions     int
	DistanceMetric string
	Algorithm      string
}

// DefaultVectorConfig returns the default configuration tuned for text-embedding-3-small.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "text-embedding-3-small",
		Dimensions:     1536,
		DistanceMetric: "cosine",
		Algorithm:      "hnsw",
	}
}
