package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeReplacesTargetSentence(t *testing.T) {
	live := "one. two. three."
	swap := "one. ZERO two. three."
	got := Merge(live, swap, 2)
	assert.Equal(t, "one. ZERO two. three.", got)
}

func TestMergePreservesOtherSentences(t *testing.T) {
	live := "alpha. beta. gamma."
	swap := "alpha. beta. CHANGED gamma."
	got := Merge(live, swap, 3)
	assert.Equal(t, "alpha. beta. CHANGED gamma.", got)
}

func TestMergeNewTrailingSentence(t *testing.T) {
	live := "one. two."
	swap := "one. two. three."
	got := Merge(live, swap, 3)
	assert.Equal(t, "one. two. three.", got)
}

func TestMergeConcurrentSentencesCompose(t *testing.T) {
	// alice edits sentence 1 against the original live file.
	live := "one. two. three."
	aliceSwap := "ZERO one. two. three."
	afterAlice := Merge(live, aliceSwap, 1)
	assert.Equal(t, "ZERO one. two. three.", afterAlice)

	// bob's swap was built from the same original live file but targets
	// sentence 3; his commit merges against the file as it now stands
	// after alice's commit.
	bobSwap := "one. two. FINAL three."
	afterBob := Merge(afterAlice, bobSwap, 3)
	assert.Equal(t, "ZERO one. two. FINAL three.", afterBob)
}
