// Package guardrail decides whether an answer is returned, flagged, or
// replaced with a refusal.
package guardrail

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Refusal messages returned in place of the answer.
const (
	MsgNoRelevantContent = "No relevant content found in the document."
	MsgLowConfidence     = "Confidence too low to provide a reliable answer."
	MsgNoInformation     = "Unable to find relevant information."
)

// Gate names the check that produced an outcome.
type Gate string

const (
	GateNone          Gate = ""
	GateRetrieval     Gate = "retrieval_floor"
	GateConfidence    Gate = "confidence_floor"
	GateHallucination Gate = "hallucination_phrase"
	GateDegenerate    Gate = "degenerate_answer"
)

const minAnswerLen = 10

// DefaultHallucinationPhrases are phrases that suggest an answer drew on
// something other than the document.
var DefaultHallucinationPhrases = []string{
	"as an ai",
	"as a language model",
	"based on my training",
	"i don't have access",
	"i cannot determine",
	"i'm not sure",
	"general knowledge",
	"typically in logistics",
	"in my experience",
	"usually",
	"commonly",
}

var nonAnswerRe = regexp.MustCompile(`(?i)^\W*(` +
	`(this )?information (is )?not (found|present|available)( in the (document|context))?|` +
	`not (found|mentioned|specified|stated) in the (document|context)|` +
	`the document does not (contain|mention|specify|state).*|` +
	`i (don't|do not) know|` +
	`no (relevant )?information( (found|available))?|` +
	`unknown|none|n/?a` +
	`)\W*$`)

// Config holds the tunable thresholds. Both are exclusive lower bounds:
// a value equal to the threshold passes.
type Config struct {
	RetrievalFloor       float64
	ConfidenceThreshold  float64
	HallucinationPhrases []string
}

// DefaultConfig returns the 0.25 retrieval floor and 0.45 confidence threshold.
func DefaultConfig() Config {
	return Config{
		RetrievalFloor:       0.25,
		ConfidenceThreshold:  0.45,
		HallucinationPhrases: DefaultHallucinationPhrases,
	}
}

// Input carries the measured signals for one answer.
type Input struct {
	Answer        string
	Confidence    float64
	TopSimilarity float64
	HasResults    bool
}

// Outcome is the evaluated answer.
type Outcome struct {
	Text      string
	Triggered bool
	Refused   bool
	Gate      Gate
	Message   string
}

// Evaluator applies the guardrail gates to a candidate answer.
type Evaluator struct {
	cfg     Config
	phrases []string
}

// NewEvaluator returns an Evaluator. Nil phrases use DefaultHallucinationPhrases.
func NewEvaluator(cfg Config) *Evaluator {
	phrases := cfg.HallucinationPhrases
	if phrases == nil {
		phrases = DefaultHallucinationPhrases
	}
	e := &Evaluator{cfg: cfg}
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			e.phrases = append(e.phrases, p)
		}
	}
	return e
}

// Evaluate applies the gates in order. The first refusal wins; the
// hallucination gate only flags and lets evaluation continue.
func (e *Evaluator) Evaluate(in Input) Outcome {
	if !in.HasResults || in.TopSimilarity < e.cfg.RetrievalFloor {
		return refuse(GateRetrieval, MsgNoRelevantContent,
			fmt.Sprintf("Top retrieval similarity (%.4f) is below %.2f.", in.TopSimilarity, e.cfg.RetrievalFloor))
	}
	if in.Confidence < e.cfg.ConfidenceThreshold {
		return refuse(GateConfidence, MsgLowConfidence,
			fmt.Sprintf("Confidence score (%.4f) is below the threshold (%.2f).", in.Confidence, e.cfg.ConfidenceThreshold))
	}

	out := Outcome{Text: in.Answer}
	if phrase, ok := e.hallucinationPhrase(in.Answer); ok {
		out.Triggered = true
		out.Gate = GateHallucination
		out.Message = fmt.Sprintf("Potential hallucination: answer contains %q. Verify against the sources.", phrase)
	}

	trimmed := strings.TrimSpace(in.Answer)
	if utf8.RuneCountInString(trimmed) < minAnswerLen {
		return refuse(GateDegenerate, MsgNoInformation, "Answer is too short or empty.")
	}
	if nonAnswerRe.MatchString(trimmed) {
		return refuse(GateDegenerate, MsgNoInformation, "Answer is a generic non-answer.")
	}
	return out
}

func (e *Evaluator) hallucinationPhrase(answer string) (string, bool) {
	lower := strings.ToLower(answer)
	for _, p := range e.phrases {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

func refuse(g Gate, text, msg string) Outcome {
	return Outcome{Text: text, Triggered: true, Refused: true, Gate: g, Message: msg}
}
