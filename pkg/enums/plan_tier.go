package enums

import "fmt"

// PlanTier identifies the purchasable subscription tiers.
type PlanTier string

const (
	PlanTierIndividual PlanTier = "individual"
	PlanTierTeam       PlanTier = "team"
	PlanTierEnterprise PlanTier = "enterprise"
)

var validPlanTiers = []PlanTier{
	PlanTierIndividual,
	PlanTierTeam,
	PlanTierEnterprise,
}

// AllPlanTiers returns every purchasable tier.
func AllPlanTiers() []PlanTier {
	out := make([]PlanTier, len(validPlanTiers))
	copy(out, validPlanTiers)
	return out
}

// String implements fmt.Stringer.
func (p PlanTier) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PlanTier) IsValid() bool {
	for _, candidate := range validPlanTiers {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlanTier converts raw input into a PlanTier.
func ParsePlanTier(value string) (PlanTier, error) {
	for _, candidate := range validPlanTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan tier %q", value)
}

// TeamMemberLimit returns the member cap for the tier, -1 meaning unlimited.
func (p PlanTier) TeamMemberLimit() int {
	switch p {
	case PlanTierTeam:
		return 10
	case PlanTierEnterprise:
		return -1
	default:
		return 1
	}
}
