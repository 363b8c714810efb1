package domain

import (
	"time"

	"github.com/google/uuid"
)

// NextFollowUpPlan describes the successor to create after a completion.
type NextFollowUpPlan struct {
	Subject         SubjectRef
	Type            Type
	Priority        Priority
	Title           string
	Description     string
	ScheduledDate   time.Time
	AssignedTo      uuid.UUID
	GeneratedFromID uuid.UUID
}

// SubjectStatusEffect is the status change to apply to the subject record.
type SubjectStatusEffect struct {
	Subject SubjectRef
	Effect  SubjectEffect
}

// Applies reports whether there is anything to write.
func (e SubjectStatusEffect) Applies() bool {
	return e.Effect != EffectNone && !e.Subject.IsZero()
}

// Resolution is what an outcome implies for a completed follow-up. Plan is nil
// for terminal outcomes.
type Resolution struct {
	Rule   OutcomeRule
	Plan   *NextFollowUpPlan
	Effect SubjectStatusEffect
}

// Resolver computes the next action for an outcome.
type Resolver struct {
	taxonomy *Taxonomy
	location *time.Location
}

// NewResolver creates a resolver. Due dates are computed in loc; nil means UTC.
func NewResolver(taxonomy *Taxonomy, loc *time.Location) *Resolver {
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{taxonomy: taxonomy, location: loc}
}

// Taxonomy returns the catalog the resolver reads from.
func (r *Resolver) Taxonomy() *Taxonomy {
	return r.taxonomy
}

// Resolve maps (outcome, followUp, now) to a resolution. It is deterministic
// and reads no clock.
func (r *Resolver) Resolve(outcome Outcome, f FollowUp, now time.Time) (Resolution, error) {
	rule, err := r.taxonomy.Rule(outcome)
	if err != nil {
		return Resolution{}, err
	}

	if rule.Terminal() {
		return Resolution{
			Rule:   rule,
			Effect: SubjectStatusEffect{Subject: f.Subject.Clone(), Effect: rule.SubjectEffect},
		}, nil
	}

	nextType := f.Type
	if rule.NextType != "" {
		nextType = rule.NextType
	}
	nextPriority := f.Priority
	if rule.NextPriority != "" {
		nextPriority = rule.NextPriority
	}

	return Resolution{
		Rule: rule,
		Plan: &NextFollowUpPlan{
			Subject:         f.Subject.Clone(),
			Type:            nextType,
			Priority:        nextPriority,
			Title:           "Follow-up: " + rule.Label,
			Description:     rule.Action,
			ScheduledDate:   r.DueDate(rule, now),
			AssignedTo:      f.AssignedTo,
			GeneratedFromID: f.ID,
		},
	}, nil
}

// DueDate adds the rule's deferral in calendar days in the canonical zone.
func (r *Resolver) DueDate(rule OutcomeRule, now time.Time) time.Time {
	if rule.DeferDays == nil {
		return time.Time{}
	}
	return now.In(r.location).AddDate(0, 0, *rule.DeferDays)
}
