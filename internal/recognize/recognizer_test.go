package recognize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcceptRejectsShortText(t *testing.T) {
	got := Accept(Candidate{Text: "AB1", Confidence: 0.95})
	assert.Equal(t, Candidate{}, got)
}

func TestAcceptKeepsLongLowishConfidence(t *testing.T) {
	c := Candidate{Text: "KA01AB1234", Confidence: 0.42}
	assert.Equal(t, c, Accept(c))
}

func TestAcceptRejectsAtConfidenceFloor(t *testing.T) {
	got := Accept(Candidate{Text: "AB12", Confidence: ConfidenceFloor})
	assert.Equal(t, Candidate{}, got)
}

func TestAcceptKeepsMinimumLength(t *testing.T) {
	c := Candidate{Text: "AB12", Confidence: 0.31}
	assert.Equal(t, c, Accept(c))
}

func TestSelectBestPicksMaxConfidence(t *testing.T) {
	got := selectBest([]span{
		{text: "KA01AB1234", confidence: 0.6},
		{text: "KA01AB1Z34", confidence: 0.8},
		{text: "KA01", confidence: 0.7},
	})
	assert.Equal(t, Candidate{Text: "KA01AB1Z34", Confidence: 0.8}, got)
}

func TestSelectBestKeepsFirstOnTie(t *testing.T) {
	got := selectBest([]span{
		{text: "FIRST1", confidence: 0.5},
		{text: "SECOND", confidence: 0.5},
	})
	assert.Equal(t, "FIRST1", got.Text)
}

func TestSelectBestEmpty(t *testing.T) {
	assert.Equal(t, Candidate{}, selectBest(nil))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "KA01AB", sanitize(" ka-01 ab\n"))
	assert.Equal(t, "", sanitize("--- "))
	assert.Equal(t, "MH12DE1433", sanitize("MH12 DE 1433"))
}
