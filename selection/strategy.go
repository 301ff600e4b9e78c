// Package selection picks a representative plan for each in-network file of a
// TOC and aggregates the results by file location.
package selection

import (
	"errors"
	"strings"

	"tocscan/toc"
)

// ErrNoCandidatePlan is returned when a reporting structure has matching files
// but no plans to choose from.
var ErrNoCandidatePlan = errors.New("no candidate plan")

// Hint records whether a PPO plan was found for a file.
type Hint string

const (
	HintPPOFound   Hint = "ppo found"
	HintNoPPOFound Hint = "no ppo found"
)

// Tier is the rule that produced a Selection.
type Tier int

const (
	// TierPPOWithEIN is a PPO plan identified by EIN.
	TierPPOWithEIN Tier = iota + 1
	// TierPPO is the first PPO plan when no PPO carries an EIN.
	TierPPO
	// TierEINFallback is the first EIN plan when there is no PPO.
	TierEINFallback
	// TierFirstPlan is the first plan when there is neither.
	TierFirstPlan
)

func (t Tier) String() string {
	switch t {
	case TierPPOWithEIN:
		return "ppo_ein"
	case TierPPO:
		return "ppo"
	case TierEINFallback:
		return "ein"
	case TierFirstPlan:
		return "first_plan"
	}
	return "unknown"
}

// ParseTier is the inverse of Tier.String. Unknown names give 0.
func ParseTier(s string) Tier {
	for t := TierPPOWithEIN; t <= TierFirstPlan; t++ {
		if t.String() == s {
			return t
		}
	}
	return 0
}

// Hint reports whether the tier came from the PPO scan.
func (t Tier) Hint() Hint {
	if t == TierPPOWithEIN || t == TierPPO {
		return HintPPOFound
	}
	return HintNoPPOFound
}

// Selection is the representative plan of a reporting structure.
type Selection struct {
	Plan toc.ReportingPlan
	Tier Tier
}

// Strategy proposes a representative plan, or reports false to defer to the
// next strategy.
type Strategy func(plans []toc.ReportingPlan) (Selection, bool)

// DefaultStrategies is the fallback order used when none is configured.
var DefaultStrategies = []Strategy{PPOFirst, FirstEIN, FirstPlan}

const einType = "EIN"

func isPPO(plan toc.ReportingPlan) bool {
	// Heuristic: a PPO has "ppo" somewhere in its name.
	return strings.Contains(strings.ToLower(plan.PlanName), "ppo")
}

// PPOFirst selects a PPO plan. A PPO identified by EIN wins outright; otherwise
// the first PPO in order is kept.
func PPOFirst(plans []toc.ReportingPlan) (Selection, bool) {
	var (
		sel   Selection
		found bool
	)
	for _, plan := range plans {
		if !isPPO(plan) {
			continue
		}
		if plan.PlanIDType == einType {
			return Selection{Plan: plan, Tier: TierPPOWithEIN}, true
		}
		if !found {
			sel = Selection{Plan: plan, Tier: TierPPO}
			found = true
		}
	}
	return sel, found
}

// FirstEIN selects the first plan identified by EIN.
func FirstEIN(plans []toc.ReportingPlan) (Selection, bool) {
	for _, plan := range plans {
		if plan.PlanIDType == einType {
			return Selection{Plan: plan, Tier: TierEINFallback}, true
		}
	}
	return Selection{}, false
}

// FirstPlan selects the first plan of any kind.
func FirstPlan(plans []toc.ReportingPlan) (Selection, bool) {
	if len(plans) == 0 {
		return Selection{}, false
	}
	return Selection{Plan: plans[0], Tier: TierFirstPlan}, true
}

// Select runs strategies in order and returns the first selection made. With no
// strategies given it uses DefaultStrategies.
func Select(plans []toc.ReportingPlan, strategies ...Strategy) (Selection, error) {
	if len(plans) == 0 {
		return Selection{}, ErrNoCandidatePlan
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	for _, strategy := range strategies {
		if sel, ok := strategy(plans); ok {
			return sel, nil
		}
	}
	return Selection{}, ErrNoCandidatePlan
}

// Dashed formats an EIN as NN-NNNNNNN by inserting a dash after the first two
// characters. Shorter ids get the dash appended.
func Dashed(id string) string {
	r := []rune(id)
	if len(r) < 2 {
		return id + "-"
	}
	return string(r[:2]) + "-" + string(r[2:])
}
