// Package alerting decides whether recent weather warrants a notification.
package alerting

import (
	"fmt"
	"strings"

	"weather-alerts/internal/models"
)

// MatchPolicy selects how a record's main category is compared with the trigger set.
type MatchPolicy string

const (
	// MatchExact requires case-insensitive equality with a trigger. Default.
	MatchExact MatchPolicy = "exact"
	// MatchSubstring accepts any main category containing a trigger.
	MatchSubstring MatchPolicy = "substring"
)

// DefaultTriggers is the trigger set used when none is configured.
var DefaultTriggers = []string{"Clouds", "Rain"}

// DefaultLookback is the number of most recent records considered.
const DefaultLookback = 4

// Evaluator is a pure function of its configuration and the records it is given.
type Evaluator struct {
	triggers []string
	policy   MatchPolicy
	lookback int
}

// NewEvaluator validates the configuration. Blank triggers are dropped; at least
// one must remain.
func NewEvaluator(triggers []string, policy MatchPolicy, lookback int) (*Evaluator, error) {
	if lookback < 1 {
		return nil, fmt.Errorf("lookback must be at least 1, got %d", lookback)
	}
	switch policy {
	case "":
		policy = MatchExact
	case MatchExact, MatchSubstring:
	default:
		return nil, fmt.Errorf("unknown match policy %q", policy)
	}

	normalized := make([]string, 0, len(triggers))
	for _, t := range triggers {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			normalized = append(normalized, t)
		}
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("trigger set is empty")
	}

	return &Evaluator{
		triggers: normalized,
		policy:   policy,
		lookback: lookback,
	}, nil
}

// Lookback returns the configured window size.
func (e *Evaluator) Lookback() int {
	return e.lookback
}

// Policy returns the configured match policy.
func (e *Evaluator) Policy() MatchPolicy {
	return e.policy
}

// Matches reports whether a main category is in the trigger set.
func (e *Evaluator) Matches(main string) bool {
	m := strings.ToLower(strings.TrimSpace(main))
	if m == "" {
		return false
	}
	for _, t := range e.triggers {
		switch e.policy {
		case MatchSubstring:
			if strings.Contains(m, t) {
				return true
			}
		default:
			if m == t {
				return true
			}
		}
	}
	return false
}

// Evaluate looks at the last Lookback records (all of them when fewer are given,
// most recent last) and collects every match in input order. The input is not
// modified.
func (e *Evaluator) Evaluate(records []models.AlertRecord) models.AlertDecision {
	window := records
	if len(window) > e.lookback {
		window = window[len(window)-e.lookback:]
	}

	matches := make([]models.AlertRecord, 0, len(window))
	for _, rec := range window {
		if e.Matches(rec.Main) {
			matches = append(matches, rec)
		}
	}

	return models.AlertDecision{
		Triggered: len(matches) > 0,
		Matches:   matches,
	}
}
