package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentencesBasic(t *testing.T) {
	sentences := SplitSentences(Tokenize("one. two! three?"))
	require.Len(t, sentences, 3)
	assert.Equal(t, []string{"one."}, sentences[0].Words)
	assert.True(t, sentences[0].Terminated)
	assert.True(t, sentences[2].Terminated)
}

func TestSplitSentencesTrailingFragment(t *testing.T) {
	sentences := SplitSentences(Tokenize("one. trailing words"))
	require.Len(t, sentences, 2)
	assert.False(t, sentences[1].Terminated)
	assert.Equal(t, []string{"trailing", "words"}, sentences[1].Words)
}

func TestSplitSentencesEmptyFile(t *testing.T) {
	sentences := SplitSentences(Tokenize(""))
	require.Len(t, sentences, 1)
	assert.False(t, sentences[0].Terminated)
}

func TestWritableSlotsTerminated(t *testing.T) {
	sentences := SplitSentences(Tokenize("one. two."))
	min, max := WritableSlots(sentences)
	assert.Equal(t, 1, min)
	assert.Equal(t, 3, max)
}

func TestWritableSlotsUnterminated(t *testing.T) {
	sentences := SplitSentences(Tokenize("one. trailing"))
	min, max := WritableSlots(sentences)
	assert.Equal(t, 1, min)
	assert.Equal(t, 2, max)
}

func TestWritableSlotsEmptyFile(t *testing.T) {
	sentences := SplitSentences(Tokenize(""))
	min, max := WritableSlots(sentences)
	assert.Equal(t, 1, min)
	assert.Equal(t, 1, max)
}

func TestInsertWordMidSentence(t *testing.T) {
	sentences := SplitSentences(Tokenize("one two three."))
	updated, err := InsertWord(sentences[0], 2, "NEW")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "NEW", "two", "three."}, updated.Words)
}

func TestInsertWordOutOfRange(t *testing.T) {
	sentences := SplitSentences(Tokenize("one two."))
	_, err := InsertWord(sentences[0], 99, "x")
	assert.Error(t, err)
}

func TestInsertWordIntoNewSentence(t *testing.T) {
	updated, err := InsertWord(Sentence{}, 1, "hello world.")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world."}, updated.Words)
}
