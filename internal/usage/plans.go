package usage

import "github.com/quillway/quillway/internal/storage"

// Limits define the caps for one subscription tier. DailyMessages resets
// each day; the word budgets are cumulative for the plan or trial lifetime.
// A zero value means the dimension does not apply to the tier.
type Limits struct {
	DailyMessages  int
	PlanWords      int
	HumanizerWords int
	TrialWords     int
}

// planLimits is the tier table. Trial accounts are metered in estimated
// tokens converted to words at the boundary (see estimate.go); subscribed
// accounts are metered in words directly.
var planLimits = map[storage.Plan]Limits{
	storage.PlanTrial: {
		DailyMessages: 10,
		TrialWords:    6000,
	},
	storage.PlanBasic: {
		DailyMessages:  100,
		PlanWords:      60000,
		HumanizerWords: 20000,
	},
	storage.PlanPremium: {
		DailyMessages:  1000,
		PlanWords:      300000,
		HumanizerWords: 100000,
	},
}

// LimitsFor returns the cap table for a plan. Unknown plans get trial
// limits, the most restrictive tier.
func LimitsFor(plan storage.Plan) Limits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[storage.PlanTrial]
}
