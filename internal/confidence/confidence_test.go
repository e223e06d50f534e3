package confidence

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dgallion1/freightdoc/internal/store"
)

func TestScoreEmptyRetrieval(t *testing.T) {
	var s Scorer
	assert.Zero(t, s.Score(nil, "The rate is $3,575.00", "What is the rate?"))
	assert.Zero(t, s.Score([]store.Hit{}, "", ""))
}

func TestRetrievalSignal(t *testing.T) {
	// 0.5*0.8 + 0.2*(0.8-0.4) + 0.3*0.6
	hits := []store.Hit{{Score: 0.8}, {Score: 0.4}}
	assert.InDelta(t, 0.66, Retrieval(hits), 1e-9)

	// single hit: no gap
	assert.InDelta(t, 0.8*0.5+0.8*0.3, Retrieval([]store.Hit{{Score: 0.8}}), 1e-9)

	// scores are clamped before combining
	assert.InDelta(t, 0.5+0.2+0.3*0.5, Retrieval([]store.Hit{{Score: 1.4}, {Score: -0.2}}), 1e-9)
}

func TestBreakdownSignals(t *testing.T) {
	hits := []store.Hit{
		{Index: 0, Text: "Total Rate: $3,575.00 USD", Score: 0.6},
		{Index: 3, Text: "Rate includes fuel surcharge", Score: 0.3},
		{Index: 1, Text: "Pickup at dock 4", Score: 0.1},
	}
	b := Scorer{}.Breakdown(hits, "Total rate 3,575 dollars", "What is the rate?")

	// key terms: total rate 575 dollars, 3 of 4 in sources
	assert.InDelta(t, 0.75, b.Coverage, 1e-9)
	// chunk 3 mentions "rate", chunk 1 mentions nothing
	assert.InDelta(t, 0.5, b.Agreement, 1e-9)
	want := 0.40*b.Retrieval + 0.35*0.75 + 0.25*0.5
	assert.InDelta(t, want, b.Composite, 1e-4)
}

func TestCoverageZeroWithoutSignificantWords(t *testing.T) {
	hits := []store.Hit{{Text: "anything", Score: 1}, {Text: "else", Score: 1}}
	b := Scorer{}.Breakdown(hits, "it is what it is", "q")
	assert.Zero(t, b.Coverage)
	assert.Zero(t, b.Agreement)
	assert.InDelta(t, 0.40*b.Retrieval, b.Composite, 1e-4)
}

func TestAgreementZeroWithOneChunk(t *testing.T) {
	b := Scorer{}.Breakdown([]store.Hit{{Text: "carrier rate", Score: 0.5}}, "carrier rate", "q")
	assert.Zero(t, b.Agreement)
	assert.InDelta(t, 1.0, b.Coverage, 1e-9)
}

func TestScoreAlwaysInUnitInterval(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	words := []string{"rate", "carrier", "usd", "dock", "weight", "the", "is"}
	for i := 0; i < 500; i++ {
		n := r.IntN(6)
		hits := make([]store.Hit, n)
		for j := range hits {
			hits[j] = store.Hit{Index: j, Text: words[r.IntN(len(words))], Score: r.Float64()*3 - 1}
		}
		answer := strings.Join([]string{words[r.IntN(len(words))], words[r.IntN(len(words))]}, " ")
		got := Scorer{}.Score(hits, answer, "q")
		if got < 0 || got > 1 {
			t.Fatalf("score %v out of range for hits=%v answer=%q", got, hits, answer)
		}
	}
}

func TestScoreIsPure(t *testing.T) {
	hits := []store.Hit{{Text: "Carrier Name: FastFreight", Score: 0.7}, {Text: "FastFreight MC 123", Score: 0.5}}
	s := Scorer{}
	first := s.Score(hits, "FastFreight", "Who is the carrier?")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Score(hits, "FastFreight", "Who is the carrier?"))
	}
}
