package patents

import (
	"context"
	"math/rand/v2"
	"unicode/utf8"
)

// Finding is a single scoring rule that matched.
type Finding struct {
	Rule        string `json:"rule"`
	Description string `json:"description"`
	Points      int    `json:"points"`
}

// Report is the outcome of a verification scoring run.
//
// The score is a cosmetic plausibility indicator shown next to a record. It is
// not part of the ledger's integrity model and must never be used to accept or
// reject a block.
type Report struct {
	// Score is the clamped total in 0–100.
	Score int `json:"score"`

	// Findings lists the rules that contributed points, including the random
	// adjustment.
	Findings []Finding `json:"findings"`
}

// Scorer rates how complete a submission looks.
type Scorer interface {
	Score(ctx context.Context, title, description, docHash string) *Report
}

const baseScore = 50

// ruleFunc inspects a submission and returns a Finding when its rule matches.
type ruleFunc func(title, description, docHash string) (Finding, bool)

// RuleBasedScorer is the default Scorer: a base score, fixed bonuses for
// descriptive fields and a random adjustment.
type RuleBasedScorer struct {
	rules  []ruleFunc
	jitter func() int
}

// NewRuleBasedScorer returns a scorer with the default rules and a random
// adjustment drawn uniformly from [-5, 15].
func NewRuleBasedScorer() *RuleBasedScorer {
	return &RuleBasedScorer{
		rules: []ruleFunc{
			ruleTitleLength,
			ruleDescriptionLength,
			ruleDocHash,
		},
		jitter: func() int { return rand.IntN(21) - 5 },
	}
}

// WithJitter replaces the random adjustment source.
func (s *RuleBasedScorer) WithJitter(jitter func() int) *RuleBasedScorer {
	s.jitter = jitter
	return s
}

// Score implements Scorer.
func (s *RuleBasedScorer) Score(_ context.Context, title, description, docHash string) *Report {
	findings := []Finding{}
	total := baseScore
	for _, r := range s.rules {
		if f, ok := r(title, description, docHash); ok {
			findings = append(findings, f)
			total += f.Points
		}
	}
	if s.jitter != nil {
		adj := s.jitter()
		findings = append(findings, Finding{
			Rule:        "random_adjustment",
			Description: "Unexplained reviewer variance",
			Points:      adj,
		})
		total += adj
	}
	return &Report{Score: clamp(total, 0, 100), Findings: findings}
}

func ruleTitleLength(title, _, _ string) (Finding, bool) {
	if utf8.RuneCountInString(title) <= 10 {
		return Finding{}, false
	}
	return Finding{Rule: "title_length", Description: "Title is longer than 10 characters", Points: 10}, true
}

func ruleDescriptionLength(_, description, _ string) (Finding, bool) {
	if utf8.RuneCountInString(description) <= 50 {
		return Finding{}, false
	}
	return Finding{Rule: "description_length", Description: "Description is longer than 50 characters", Points: 15}, true
}

func ruleDocHash(_, _, docHash string) (Finding, bool) {
	if docHash == "" {
		return Finding{}, false
	}
	return Finding{Rule: "document_hash", Description: "A document hash is present", Points: 20}, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
