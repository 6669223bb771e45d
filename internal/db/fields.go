package db

// Hash fields of an indexed chunk.
const (
	FieldContent  = "__content"
	FieldVector   = "__vector"
	FieldTitle    = "title"
	FieldCategory = "category"
	FieldURL      = "url"
	FieldOrdinal  = "ordinal"
)

// VectorAlias is the query name of FieldVector. A KNN query on it yields the
// distance as FieldVectorScore.
const (
	VectorAlias      = "vector"
	FieldVectorScore = "__" + VectorAlias + "_score"
)
