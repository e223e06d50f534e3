// Package confidence scores how well an answer is supported by the chunks
// retrieved for it.
package confidence

import (
	"math"
	"strings"

	"github.com/dgallion1/freightdoc/internal/store"
	"github.com/dgallion1/freightdoc/internal/terms"
)

// Signal weights.
const (
	WeightRetrieval = 0.40
	WeightCoverage  = 0.35
	WeightAgreement = 0.25

	weightTop  = 0.50
	weightGap  = 0.20
	weightMean = 0.30
)

// Breakdown holds the sub-signals behind a composite score.
type Breakdown struct {
	Retrieval float64 `json:"retrieval"`
	Coverage  float64 `json:"coverage"`
	Agreement float64 `json:"agreement"`
	Composite float64 `json:"composite"`
}

// Scorer computes composite confidence. The zero value uses the default
// stopword list.
type Scorer struct {
	Stopwords terms.Set
}

// Score returns the composite confidence for answer given hits.
func (s Scorer) Score(hits []store.Hit, answer, question string) float64 {
	return s.Breakdown(hits, answer, question).Composite
}

// Breakdown returns every signal. It has no side effects.
func (s Scorer) Breakdown(hits []store.Hit, answer, question string) Breakdown {
	if len(hits) == 0 {
		return Breakdown{}
	}
	sw := s.Stopwords
	if sw == nil {
		sw = terms.DefaultStopwords()
	}
	keyTerms := sw.Significant(answer)

	b := Breakdown{
		Retrieval: Retrieval(hits),
		Coverage:  coverage(keyTerms, hits),
		Agreement: agreement(keyTerms, hits),
	}
	b.Composite = round4(clamp(WeightRetrieval*b.Retrieval + WeightCoverage*b.Coverage + WeightAgreement*b.Agreement))
	return b
}

// Retrieval blends the top score, its lead over the runner-up, and the mean.
func Retrieval(hits []store.Hit) float64 {
	if len(hits) == 0 {
		return 0
	}
	top := clamp(hits[0].Score)
	gap := 0.0
	if len(hits) > 1 {
		gap = top - clamp(hits[1].Score)
	}
	var sum float64
	for _, h := range hits {
		sum += clamp(h.Score)
	}
	mean := sum / float64(len(hits))
	return clamp(weightTop*top + weightGap*gap + weightMean*mean)
}

// coverage is the fraction of key terms present in the source text.
func coverage(keyTerms []string, hits []store.Hit) float64 {
	if len(keyTerms) == 0 {
		return 0
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	vocab := terms.Vocabulary(strings.Join(texts, " "))
	found := 0
	for _, t := range keyTerms {
		if vocab.Contains(t) {
			found++
		}
	}
	return float64(found) / float64(len(keyTerms))
}

// agreement is the fraction of non-top chunks containing any key term.
func agreement(keyTerms []string, hits []store.Hit) float64 {
	if len(hits) < 2 || len(keyTerms) == 0 {
		return 0
	}
	agreeing := 0
	for _, h := range hits[1:] {
		vocab := terms.Vocabulary(h.Text)
		for _, t := range keyTerms {
			if vocab.Contains(t) {
				agreeing++
				break
			}
		}
	}
	return float64(agreeing) / float64(len(hits)-1)
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
