package chunk

import (
	"github.com/nooikko/nightreign-query/internal/db"
	"github.com/nooikko/nightreign-query/internal/domain"
)

// titleWeight boosts title matches over body matches in BM25.
const titleWeight = 2.0

// buildIndex defines the chunk index: weighted title and body text for BM25,
// category and url tags for filtering, and an HNSW cosine vector.
func buildIndex(dim int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return db.NewIndex(domain.ChunkIndexName, domain.ChunkKeyPrefix).
		Text(db.FieldTitle).Weight(titleWeight).NoStem().
		Text(db.FieldContent).
		Tag(db.FieldCategory).
		Tag(db.FieldURL).
		Numeric(db.FieldOrdinal).Sortable().
		Vector(db.FieldVector, db.HNSW{
			Dim:         dim,
			Distance:    db.DistanceCosine,
			M:           hnsw.M,
			EFConstruct: hnsw.EFConstruct,
		}).As(db.VectorAlias).
		Build()
}
