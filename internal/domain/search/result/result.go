package result

import "github.com/nooikko/nightreign-query/internal/domain/category"

// Hit is a single entry returned by one retrieval path of the document index.
type Hit struct {
	id       string
	score    float64
	url      string
	title    string
	category category.Category
	content  string
}

// New creates an index hit.
func New(id string, score float64, url, title string, cat category.Category, content string) Hit {
	return Hit{
		id: id, score: score,
		url: url, title: title, category: cat, content: content,
	}
}

// ID returns the chunk identifier.
func (h *Hit) ID() string { return h.id }

// Score returns the raw score of the retrieval path that produced the hit.
func (h *Hit) Score() float64 { return h.score }

// URL returns the source page URL.
func (h *Hit) URL() string { return h.url }

// Title returns the source page title.
func (h *Hit) Title() string { return h.title }

// Category returns the content category of the source page.
func (h *Hit) Category() category.Category { return h.category }

// Content returns the chunk text.
func (h *Hit) Content() string { return h.content }

// Scored is a fused result. LexicalScore and VectorScore are nil when the
// item did not appear in that retrieval path.
type Scored struct {
	ID           string            `json:"id"`
	URL          string            `json:"url"`
	Title        string            `json:"title,omitempty"`
	Category     category.Category `json:"category"`
	Content      string            `json:"content"`
	LexicalScore *float64          `json:"lexical_score,omitempty"`
	VectorScore  *float64          `json:"vector_score,omitempty"`
	FusedScore   float64           `json:"fused_score"`
}

// FromHit copies display fields of h into a Scored with no scores set.
func FromHit(h Hit) Scored {
	return Scored{
		ID:       h.id,
		URL:      h.url,
		Title:    h.title,
		Category: h.category,
		Content:  h.content,
	}
}
