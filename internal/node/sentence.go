package node

import "strings"

// sentenceDelimiters are the terminal punctuation characters that end a
// sentence: the final character of a word matching one of these closes
// the sentence.
const sentenceDelimiters = ".!?"

// Sentence is one span of words between whitespace-delimited terminal
// punctuation.
type Sentence struct {
	Words      []string
	Terminated bool
}

// Tokenize splits text on whitespace into an ordered sequence of words.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// SplitSentences groups words into sentences. A sentence boundary falls
// after any word whose final character is one of '.', '!', '?'. A
// trailing run of words with no terminal delimiter forms one more
// sentence. An empty token list yields a single empty, unterminated
// sentence slot, matching the spec's "one writable sentence slot" rule
// for empty files.
func SplitSentences(words []string) []Sentence {
	if len(words) == 0 {
		return []Sentence{{Words: nil, Terminated: false}}
	}

	var sentences []Sentence
	var current []string
	for _, w := range words {
		current = append(current, w)
		if isTerminated(w) {
			sentences = append(sentences, Sentence{Words: current, Terminated: true})
			current = nil
		}
	}
	if len(current) > 0 {
		sentences = append(sentences, Sentence{Words: current, Terminated: false})
	}
	return sentences
}

func isTerminated(word string) bool {
	if word == "" {
		return false
	}
	last := word[len(word)-1]
	return strings.IndexByte(sentenceDelimiters, last) >= 0
}

// JoinWords reserialises a word slice with single-space separators. The
// commit merge never preserves original whitespace runs.
func JoinWords(words []string) string {
	return strings.Join(words, " ")
}

// JoinSentences reserialises a sentence slice back into full text.
func JoinSentences(sentences []Sentence) string {
	parts := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if len(s.Words) > 0 {
			parts = append(parts, JoinWords(s.Words))
		}
	}
	return strings.Join(parts, " ")
}

// WritableSlots returns the range of sentence indices, 1-based, that a
// WRITE may target: [1, len(sentences)+1] where the +1 slot is only
// available when the last sentence is delimiter-terminated (or the file
// is empty).
func WritableSlots(sentences []Sentence) (min, max int) {
	n := len(sentences)
	if n == 1 && len(sentences[0].Words) == 0 {
		return 1, 1
	}
	if n > 0 && sentences[n-1].Terminated {
		return 1, n + 1
	}
	return 1, n
}

// InsertWord splits content on whitespace and inserts it at the 1-based
// wordIndex within sentence. The sentence's terminal delimiter, if any,
// is detached before insertion and reattached to the new last word.
func InsertWord(sentence Sentence, wordIndex int, content string) (Sentence, error) {
	words := append([]string(nil), sentence.Words...)
	var delimiter byte
	hadDelimiter := false
	if len(words) > 0 && isTerminated(words[len(words)-1]) {
		last := words[len(words)-1]
		delimiter = last[len(last)-1]
		words[len(words)-1] = last[:len(last)-1]
		hadDelimiter = true
	}

	if wordIndex < 1 || wordIndex > len(words)+1 {
		return Sentence{}, errWordIndexOutOfRange
	}

	inserted := Tokenize(content)
	merged := make([]string, 0, len(words)+len(inserted))
	merged = append(merged, words[:wordIndex-1]...)
	merged = append(merged, inserted...)
	merged = append(merged, words[wordIndex-1:]...)

	// Drop any empty leading word left by a sentence that was only a
	// detached delimiter (e.g. a brand-new sentence slot).
	filtered := merged[:0]
	for _, w := range merged {
		if w != "" {
			filtered = append(filtered, w)
		}
	}
	merged = filtered

	if hadDelimiter && len(merged) > 0 {
		merged[len(merged)-1] = merged[len(merged)-1] + string(delimiter)
	}

	return Sentence{Words: merged, Terminated: hadDelimiter}, nil
}
