package mode

// Mode reports which retrieval paths produced a result set.
type Mode string

// Search mode constants.
const (
	// Hybrid fuses lexical and vector results.
	Hybrid Mode = "hybrid"
	// Fulltext uses the lexical path only, either by request or after the vector path failed.
	Fulltext Mode = "fulltext"
	// Semantic uses the vector path only, after the lexical path failed.
	Semantic Mode = "semantic"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Fulltext || m == Semantic
}
