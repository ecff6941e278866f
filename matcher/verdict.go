package matcher

// Verdict labels for a two-image comparison.
const (
	VerdictVerySimilar     = "very similar"
	VerdictSimilar         = "similar"
	VerdictSomewhatSimilar = "somewhat similar"
	VerdictLow             = "low similarity"
)

// Verdict maps a cosine similarity to a human-readable band.
func Verdict(similarity float64) string {
	switch {
	case similarity >= 0.90:
		return VerdictVerySimilar
	case similarity >= 0.80:
		return VerdictSimilar
	case similarity >= 0.70:
		return VerdictSomewhatSimilar
	default:
		return VerdictLow
	}
}
