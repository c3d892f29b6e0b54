// Package tier holds the compiled-in subscription tier catalog.
package tier

import "strings"

type Tier string

const (
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierTeam       Tier = "team"
	TierEnterprise Tier = "enterprise"
	TierAdmin      Tier = "admin"
)

// legacyAliases maps retired tier keys to their current equivalents.
// Organizations created before the 2024 pricing change may still carry them.
var legacyAliases = map[string]Tier{
	"free":     TierStarter,
	"solo":     TierPro,
	"business": TierTeam,
}

// Resolve normalizes a raw tier key to a known Tier. Unknown keys fall back
// to starter so a stale or mistyped key never blocks an organization outright.
func Resolve(raw string) Tier {
	key := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := legacyAliases[key]; ok {
		return alias
	}
	switch Tier(key) {
	case TierStarter, TierPro, TierTeam, TierEnterprise, TierAdmin:
		return Tier(key)
	default:
		return TierStarter
	}
}

// All returns the current (non-legacy) tier keys in upgrade order.
func All() []Tier {
	return []Tier{TierStarter, TierPro, TierTeam, TierEnterprise, TierAdmin}
}
