package textutil

// Bigrams returns the set of adjacent rune pairs of the normalized text.
// Texts of a single rune yield that rune alone; empty text yields an empty set.
func Bigrams(text string) map[string]struct{} {
	runes := []rune(NormalizeAlnum(text))
	grams := make(map[string]struct{}, len(runes))
	if len(runes) <= 1 {
		if len(runes) == 1 {
			grams[string(runes)] = struct{}{}
		}
		return grams
	}
	for i := 0; i < len(runes)-1; i++ {
		grams[string(runes[i:i+2])] = struct{}{}
	}
	return grams
}

// Jaccard computes |a∩b| / |a∪b|. Two empty sets are identical.
func Jaccard(a, b map[string]struct{}) float64 {
	var intersection int
	for gram := range a {
		if _, ok := b[gram]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1
	}
	return float64(intersection) / float64(union)
}
