package domain

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"followup_backend/platform/apperr"

	"gopkg.in/yaml.v3"
)

// Outcome is the human-selected result of a completed follow-up.
type Outcome string

const (
	OutcomeInterested         Outcome = "interested"
	OutcomeVeryInterested     Outcome = "very_interested"
	OutcomeRequestedQuote     Outcome = "requested_quote"
	OutcomeWantsMeeting       Outcome = "wants_meeting"
	OutcomeWantsMoreInfo      Outcome = "wants_more_info"
	OutcomeNeedsTime          Outcome = "needs_time"
	OutcomeWillCallBack       Outcome = "will_call_back"
	OutcomeBusy               Outcome = "busy"
	OutcomeInMeeting          Outcome = "in_meeting"
	OutcomeNoAnswer           Outcome = "no_answer"
	OutcomeNotInterested      Outcome = "not_interested"
	OutcomeNotInterestedFinal Outcome = "not_interested_final"
	OutcomeWrongNumber        Outcome = "wrong_number"
	OutcomeConverted          Outcome = "converted"
	OutcomeDealClosed         Outcome = "deal_closed"
)

// Outcomes is the closed set of outcome labels in catalog order.
var Outcomes = []Outcome{
	OutcomeInterested,
	OutcomeVeryInterested,
	OutcomeRequestedQuote,
	OutcomeWantsMeeting,
	OutcomeWantsMoreInfo,
	OutcomeNeedsTime,
	OutcomeWillCallBack,
	OutcomeBusy,
	OutcomeInMeeting,
	OutcomeNoAnswer,
	OutcomeNotInterested,
	OutcomeNotInterestedFinal,
	OutcomeWrongNumber,
	OutcomeConverted,
	OutcomeDealClosed,
}

// Category groups outcomes by what they mean for the relationship.
type Category string

const (
	CategoryPositive Category = "positive"
	CategoryDelayed  Category = "delayed"
	CategoryNeutral  Category = "neutral"
	CategoryNegative Category = "negative"
	CategorySuccess  Category = "success"
)

// Notifies reports whether completions in this category are announced to
// stakeholders.
func (c Category) Notifies() bool {
	return c == CategoryPositive || c == CategorySuccess
}

func (c Category) valid() bool {
	switch c {
	case CategoryPositive, CategoryDelayed, CategoryNeutral, CategoryNegative, CategorySuccess:
		return true
	}
	return false
}

// SubjectEffect is the change a terminal outcome applies to the lead or client.
type SubjectEffect string

const (
	EffectNone         SubjectEffect = ""
	EffectDisqualified SubjectEffect = "disqualified"
	EffectConverted    SubjectEffect = "converted"
)

// OutcomeRule maps an outcome to its category, action and deferral policy.
type OutcomeRule struct {
	Outcome       Outcome       `yaml:"outcome" json:"outcome"`
	Label         string        `yaml:"label" json:"label"`
	Category      Category      `yaml:"category" json:"category"`
	Action        string        `yaml:"action" json:"action"`
	DeferDays     *int          `yaml:"deferDays,omitempty" json:"deferDays,omitempty"`
	NextType      Type          `yaml:"nextType,omitempty" json:"nextType,omitempty"`
	NextPriority  Priority      `yaml:"nextPriority,omitempty" json:"nextPriority,omitempty"`
	SubjectEffect SubjectEffect `yaml:"subjectEffect,omitempty" json:"subjectEffect,omitempty"`
}

// Terminal reports whether the outcome ends the chain without a successor.
func (r OutcomeRule) Terminal() bool {
	return r.DeferDays == nil
}

func (r OutcomeRule) validate() error {
	if r.Label == "" {
		return fmt.Errorf("outcome %s: label is required", r.Outcome)
	}
	if !r.Category.valid() {
		return fmt.Errorf("outcome %s: unknown category %q", r.Outcome, r.Category)
	}
	if r.DeferDays != nil && *r.DeferDays < 0 {
		return fmt.Errorf("outcome %s: deferDays must not be negative", r.Outcome)
	}
	if r.NextType != "" && !r.NextType.Valid() {
		return fmt.Errorf("outcome %s: unknown nextType %q", r.Outcome, r.NextType)
	}
	if r.NextPriority != "" && !r.NextPriority.Valid() {
		return fmt.Errorf("outcome %s: unknown nextPriority %q", r.Outcome, r.NextPriority)
	}
	switch r.SubjectEffect {
	case EffectNone:
	case EffectDisqualified, EffectConverted:
		if !r.Terminal() {
			return fmt.Errorf("outcome %s: only terminal outcomes may change the subject", r.Outcome)
		}
	default:
		return fmt.Errorf("outcome %s: unknown subjectEffect %q", r.Outcome, r.SubjectEffect)
	}
	return nil
}

//go:embed rules.yaml
var defaultRules []byte

// Taxonomy is the catalog of outcome rules. It is the only place deferral
// offsets are defined.
type Taxonomy struct {
	rules map[Outcome]OutcomeRule
}

type ruleFile struct {
	Outcomes []OutcomeRule `yaml:"outcomes"`
}

// DefaultTaxonomy returns the built-in catalog.
func DefaultTaxonomy() *Taxonomy {
	t, err := ParseTaxonomy(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded outcome rules are invalid: %v", err))
	}
	return t
}

// LoadTaxonomy reads the catalog from path, or returns the built-in one when
// path is empty.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTaxonomy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read outcome rules: %w", err)
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy decodes a YAML catalog. The catalog must define every outcome
// label exactly once and nothing else.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode outcome rules: %w", err)
	}

	known := make(map[Outcome]struct{}, len(Outcomes))
	for _, o := range Outcomes {
		known[o] = struct{}{}
	}

	rules := make(map[Outcome]OutcomeRule, len(file.Outcomes))
	for _, rule := range file.Outcomes {
		if _, ok := known[rule.Outcome]; !ok {
			return nil, fmt.Errorf("unknown outcome %q in rules", rule.Outcome)
		}
		if _, dup := rules[rule.Outcome]; dup {
			return nil, fmt.Errorf("outcome %q defined twice", rule.Outcome)
		}
		if err := rule.validate(); err != nil {
			return nil, err
		}
		rules[rule.Outcome] = rule
	}
	for _, o := range Outcomes {
		if _, ok := rules[o]; !ok {
			return nil, fmt.Errorf("outcome %q has no rule", o)
		}
	}

	return &Taxonomy{rules: rules}, nil
}

// Parse turns a raw label into an Outcome, failing with UnknownOutcome.
func (t *Taxonomy) Parse(label string) (Outcome, error) {
	o := Outcome(strings.TrimSpace(label))
	if _, ok := t.rules[o]; !ok {
		return "", apperr.UnknownOutcome(fmt.Sprintf("unknown outcome %q", label))
	}
	return o, nil
}

// Rule returns the rule for o, failing with UnknownOutcome.
func (t *Taxonomy) Rule(o Outcome) (OutcomeRule, error) {
	rule, ok := t.rules[o]
	if !ok {
		return OutcomeRule{}, apperr.UnknownOutcome(fmt.Sprintf("unknown outcome %q", o))
	}
	return rule, nil
}

// Rules returns every rule in catalog order.
func (t *Taxonomy) Rules() []OutcomeRule {
	out := make([]OutcomeRule, 0, len(Outcomes))
	for _, o := range Outcomes {
		out = append(out, t.rules[o])
	}
	return out
}
