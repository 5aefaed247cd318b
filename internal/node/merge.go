package node

// Merge performs the commit-time three-way merge: sentences [1, n-1] are
// copied verbatim from the live file, the n-th sentence comes from the
// swap content (or, if n exceeds the live sentence count, the swap's
// trailing content is appended after the existing content), and sentences
// [n+1, end] are copied verbatim from the live file. n is 1-based.
func Merge(liveContent, swapContent string, n int) string {
	liveSentences := SplitSentences(Tokenize(liveContent))
	swapSentences := SplitSentences(Tokenize(swapContent))

	if n > len(liveSentences) {
		// The swap opened a brand-new trailing sentence slot: keep every
		// live sentence as-is and append whatever the swap holds beyond
		// the point where it diverged from the live file.
		var trailing []Sentence
		if len(liveSentences) < len(swapSentences) {
			trailing = swapSentences[len(liveSentences):]
		}
		return JoinSentences(append(append([]Sentence{}, liveSentences...), trailing...))
	}

	var swapSentence Sentence
	if n-1 < len(swapSentences) {
		swapSentence = swapSentences[n-1]
	}

	result := make([]Sentence, 0, len(liveSentences))
	result = append(result, liveSentences[:n-1]...)
	if len(swapSentence.Words) > 0 {
		result = append(result, swapSentence)
	}
	if n < len(liveSentences) {
		result = append(result, liveSentences[n:]...)
	}
	return JoinSentences(result)
}
