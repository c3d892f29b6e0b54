package tier

import "fmt"

// SeatValidation carries the outcome of a seat-count check. Error is a
// user-renderable message, empty when Valid.
type SeatValidation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidateSeatCount enforces the tier's seat floor and ceiling. The bounds
// are asymmetric business rules, not a generic range check: pro caps at 4
// seats and points at team, team floors at 5 seats and points back at pro.
// This is the single source of truth; checkout validation calls it too.
func ValidateSeatCount(raw string, seats int) SeatValidation {
	if seats <= 0 {
		return SeatValidation{Error: "seat count must be at least 1"}
	}

	def := GetTierConfig(raw)

	if def.SeatMin > 0 && seats < def.SeatMin {
		msg := fmt.Sprintf("the %s tier requires at least %d seats", def.Tier, def.SeatMin)
		if down := downgradeFor(def.Tier); down != "" {
			msg += fmt.Sprintf("; for fewer seats consider the %s tier", down)
		}
		return SeatValidation{Error: msg}
	}

	if def.SeatMax > 0 && seats > def.SeatMax {
		msg := fmt.Sprintf("the %s tier allows at most %d seats", def.Tier, def.SeatMax)
		if def.UpgradeTier != "" {
			msg += fmt.Sprintf("; for more seats upgrade to the %s tier", def.UpgradeTier)
		}
		return SeatValidation{Error: msg}
	}

	return SeatValidation{Valid: true}
}

func downgradeFor(t Tier) Tier {
	switch t {
	case TierTeam:
		return TierPro
	case TierEnterprise:
		return TierTeam
	default:
		return ""
	}
}
