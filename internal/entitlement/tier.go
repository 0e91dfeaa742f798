// AngelaMos | 2026
// tier.go

package entitlement

import (
	"github.com/carterperez-dev/coursegate/internal/config"
)

type Features struct {
	LearningExplanations bool `json:"learning_explanations"`
	Missions             bool `json:"missions"`
	Analytics            bool `json:"analytics"`
	AIMentor             bool `json:"ai_mentor"`
	XPBoost              bool `json:"xp_boost"`
}

type Tier struct {
	Plan      Plan     `json:"plan"`
	MaxWeek   int      `json:"max_week"`
	Unlimited bool     `json:"unlimited"`
	HasAccess bool     `json:"has_access"`
	Features  Features `json:"features"`
}

func (t Tier) AllowsWeek(week int) bool {
	return t.Unlimited || week <= t.MaxWeek
}

var allFeatures = Features{
	LearningExplanations: true,
	Missions:             true,
	Analytics:            true,
	AIMentor:             true,
	XPBoost:              true,
}

// Tiers is the static plan table. It is built once from config.
type Tiers struct {
	byPlan map[Plan]Tier
}

func NewTiers(cfg config.PlansConfig) Tiers {
	return Tiers{byPlan: map[Plan]Tier{
		PlanFree: {
			Plan:      PlanFree,
			MaxWeek:   cfg.FreeMaxWeek,
			HasAccess: true,
		},
		PlanBasic: {
			Plan:      PlanBasic,
			MaxWeek:   cfg.BasicMaxWeek,
			HasAccess: true,
			Features: Features{
				LearningExplanations: true,
				Missions:             true,
			},
		},
		PlanPro: {
			Plan:      PlanPro,
			Unlimited: true,
			HasAccess: true,
			Features:  allFeatures,
		},
		PlanAdmin: {
			Plan:      PlanAdmin,
			Unlimited: true,
			HasAccess: true,
			Features:  allFeatures,
		},
	}}
}

// For falls back to FREE for unknown plans.
func (t Tiers) For(plan Plan) Tier {
	if tier, ok := t.byPlan[plan]; ok {
		return tier
	}
	return t.byPlan[PlanFree]
}

// RequiredPlan is the cheapest purchasable plan that unlocks week.
func (t Tiers) RequiredPlan(week int) Plan {
	for _, plan := range []Plan{PlanFree, PlanBasic, PlanPro} {
		if t.For(plan).AllowsWeek(week) {
			return plan
		}
	}
	return PlanPro
}
