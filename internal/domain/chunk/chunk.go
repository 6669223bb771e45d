// Package chunk defines the unit of text stored in the document index.
package chunk

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/nooikko/nightreign-query/internal/domain/category"
)

// Chunk is a bounded slice of a wiki page with its embedding.
type Chunk struct {
	ID       string
	URL      string
	Title    string
	Category category.Category
	Ordinal  int
	Content  string
	Vector   []float32
}

// NewID derives a stable chunk ID from the page URL and the chunk position,
// so re-ingesting a page overwrites its previous chunks.
func NewID(url string, ordinal int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url+"#"+strconv.Itoa(ordinal))).String()
}
