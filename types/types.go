package types

// Embedding is a fixed-length feature vector produced by the extractor.
// Vectors handed out by the extractor are unit length unless the raw
// feature map was all zeros.
type Embedding []float32

// EmbeddingSet pairs image paths with their embeddings. Paths[i] belongs to
// Vectors[i]; paths that failed extraction appear in neither slice.
type EmbeddingSet struct {
	Paths   []string    `json:"paths"`
	Vectors []Embedding `json:"-"`
	Dim     int         `json:"dim"`
}

// NewEmbeddingSet returns an empty set of the given width.
func NewEmbeddingSet(dim int) EmbeddingSet {
	return EmbeddingSet{
		Paths:   []string{},
		Vectors: []Embedding{},
		Dim:     dim,
	}
}

// Len returns the number of rows in the set.
func (s EmbeddingSet) Len() int {
	return len(s.Paths)
}

// Append adds one row, keeping Paths and Vectors aligned.
func (s *EmbeddingSet) Append(path string, vec Embedding) {
	s.Paths = append(s.Paths, path)
	s.Vectors = append(s.Vectors, vec)
}

// MatchRecord is one accepted query/target pair.
type MatchRecord struct {
	Seq        int     `json:"seq"`
	QueryPath  string  `json:"query_path"`
	TargetPath string  `json:"target_path"`
	Similarity float32 `json:"similarity"`
}

// ScoredQuery is a query with its best similarity, matched or not.
type ScoredQuery struct {
	QueryPath  string  `json:"query_path"`
	TargetPath string  `json:"target_path"`
	Similarity float32 `json:"similarity"`
}

// RunStatistics summarises the best similarity of every evaluated query.
type RunStatistics struct {
	Count  int           `json:"count"`
	Max    float64       `json:"max"`
	Mean   float64       `json:"mean"`
	Median float64       `json:"median"`
	Min    float64       `json:"min"`
	Top    []ScoredQuery `json:"top"`
}
