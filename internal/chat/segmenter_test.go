package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmenterEmitsOnce(t *testing.T) {
	s := NewSegmenter()

	assert.Equal(t, []string{"Hi.", "How are you?"}, s.Scan("Hi. How are you? Fine"))
	assert.Empty(t, s.Scan("Hi. How are you? Fine"))
	assert.Equal(t, []string{"Fine!"}, s.Scan("Hi. How are you? Fine!"))
	assert.Empty(t, s.Scan("Hi. How are you? Fine!"))
	assert.Equal(t, []string{"Hi.", "How are you?", "Fine!"}, s.Seen())
}

func TestSegmenterTerminatorRuns(t *testing.T) {
	s := NewSegmenter()

	assert.Equal(t, []string{"Really?!", "Wait...", "Ok."}, s.Scan("Really?! Wait... Ok. and"))
}

func TestSegmenterGrowingTerminatorRun(t *testing.T) {
	s := NewSegmenter()

	assert.Equal(t, []string{"Wow!"}, s.Scan("Wow!"))
	// the sentence grows into a different string and is reported again
	assert.Equal(t, []string{"Wow!!"}, s.Scan("Wow!!"))
}

func TestSegmenterNoTerminator(t *testing.T) {
	s := NewSegmenter()

	assert.Empty(t, s.Scan(""))
	assert.Empty(t, s.Scan("   still typing"))
	assert.Empty(t, s.Seen())
}

func TestSegmenterRepeatedSentence(t *testing.T) {
	s := NewSegmenter()

	assert.Equal(t, []string{"Yes."}, s.Scan("Yes. Yes."))
}
