package openai

// maxExtractionRunes bounds the chunk text sent to the extraction model.
// Chunks are normally well under this; the cap guards against oversized
// inputs blowing the model's context window.
const maxExtractionRunes = 4000

// truncateRunes clips a string to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// isLetter returns true if the rune is an ASCII letter.
func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
