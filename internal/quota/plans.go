// Package quota enforces per-plan monthly generation limits.
package quota

import "strings"

// Unlimited marks a limit that is never enforced.
const Unlimited = -1

// Plan is a subscription tier and its monthly limits.
type Plan struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	SlidesPerMonth        int    `json:"slidesPerMonth"`
	PresentationsPerMonth int    `json:"presentationsPerMonth"`
}

const DefaultPlanID = "espresso"

var plans = []Plan{
	{ID: "espresso", Name: "Espresso", SlidesPerMonth: 5, PresentationsPerMonth: 1},
	{ID: "americano", Name: "Americano", SlidesPerMonth: 75, PresentationsPerMonth: 7},
	{ID: "cappuccino", Name: "Cappuccino", SlidesPerMonth: 450, PresentationsPerMonth: 30},
	{ID: "coldbrew", Name: "Cold Brew", SlidesPerMonth: 800, PresentationsPerMonth: 60},
	{ID: "frenchpress", Name: "French Press", SlidesPerMonth: Unlimited, PresentationsPerMonth: Unlimited},
}

// Plans returns the catalogue in ascending tier order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// LookupPlan resolves a plan id, case-insensitively. Unknown or empty ids
// fall back to the free tier.
func LookupPlan(id string) Plan {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range plans {
		if p.ID == id {
			return p
		}
	}
	return plans[0]
}
