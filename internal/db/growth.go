package db

import "fmt"

// GrowthTier classifies a period-over-period lead change.
type GrowthTier string

const (
	GrowthOutstanding GrowthTier = "outstanding"
	GrowthPositive    GrowthTier = "positive"
	GrowthNegative    GrowthTier = "negative"
	GrowthNeutral     GrowthTier = "neutral"
)

type growthRule struct {
	tier    GrowthTier
	matches func(pct float64) bool
	message func(pct float64) string
}

// growthRules is evaluated in order; the first match wins and
// the last rule matches everything, NaN included.
var growthRules = []growthRule{
	{
		tier:    GrowthOutstanding,
		matches: func(pct float64) bool { return pct > 20 },
		message: func(pct float64) string {
			return fmt.Sprintf(
				"Outstanding! Leads are up %.1f%% on the previous period.",
				pct,
			)
		},
	},
	{
		tier:    GrowthPositive,
		matches: func(pct float64) bool { return pct > 0 },
		message: func(pct float64) string {
			return fmt.Sprintf(
				"Keep it up! Leads grew %.1f%% on the previous period.",
				pct,
			)
		},
	},
	{
		tier:    GrowthNegative,
		matches: func(pct float64) bool { return pct < -10 },
		message: func(pct float64) string {
			return fmt.Sprintf(
				"Leads fell %.1f%% on the previous period. Time to review your campaigns.",
				-pct,
			)
		},
	},
	{
		tier:    GrowthNeutral,
		matches: func(float64) bool { return true },
		message: func(float64) string {
			return "Lead volume is holding steady against the previous period."
		},
	},
}

// GrowthMessage picks the tier and sentence for a signed
// percentage change in leads.
func GrowthMessage(pct float64) (GrowthTier, string) {
	for _, r := range growthRules {
		if r.matches(pct) {
			return r.tier, r.message(pct)
		}
	}
	// unreachable: the last rule always matches
	return GrowthNeutral, ""
}
