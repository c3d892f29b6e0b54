package tier

import (
	"strings"
	"testing"
)

func TestGetTierConfigUnknownKeyDefaultsToStarter(t *testing.T) {
	for _, raw := range []string{"", "platinum", "STARTER ", "not-a-tier"} {
		def := GetTierConfig(raw)
		if raw == "STARTER " {
			if def.Tier != TierStarter {
				t.Fatalf("expected starter for %q, got %s", raw, def.Tier)
			}
			continue
		}
		if def.Tier != TierStarter {
			t.Fatalf("expected starter fallback for %q, got %s", raw, def.Tier)
		}
	}
}

func TestResolveLegacyAliases(t *testing.T) {
	cases := map[string]Tier{
		"free":     TierStarter,
		"solo":     TierPro,
		"business": TierTeam,
		"Business": TierTeam,
		"pro":      TierPro,
		"admin":    TierAdmin,
	}
	for raw, want := range cases {
		if got := Resolve(raw); got != want {
			t.Fatalf("Resolve(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestCatalogCoversAllTiers(t *testing.T) {
	for _, tr := range All() {
		def := GetTierConfig(string(tr))
		if def.Tier != tr {
			t.Fatalf("catalog entry for %s returned %s", tr, def.Tier)
		}
	}
}

func TestStarterAnchors(t *testing.T) {
	def := GetTierConfig("starter")
	if def.TokenAllowance != 50_000 {
		t.Fatalf("starter token allowance = %d", def.TokenAllowance)
	}
	if def.DocAllowance != 10 {
		t.Fatalf("starter doc allowance = %d", def.DocAllowance)
	}
	if def.BulkOperationLimit != 20 {
		t.Fatalf("starter bulk limit = %d", def.BulkOperationLimit)
	}
}

func TestValidateSeatCountBoundaries(t *testing.T) {
	if v := ValidateSeatCount("pro", 4); !v.Valid {
		t.Fatalf("pro with 4 seats should be valid: %s", v.Error)
	}
	if v := ValidateSeatCount("pro", 5); v.Valid {
		t.Fatal("pro with 5 seats should be invalid")
	} else if !strings.Contains(v.Error, "team") {
		t.Fatalf("pro overflow should suggest team: %q", v.Error)
	}

	if v := ValidateSeatCount("team", 5); !v.Valid {
		t.Fatalf("team with 5 seats should be valid: %s", v.Error)
	}
	if v := ValidateSeatCount("team", 4); v.Valid {
		t.Fatal("team with 4 seats should be invalid")
	} else if !strings.Contains(v.Error, "pro") {
		t.Fatalf("team underflow should suggest pro: %q", v.Error)
	}
}

func TestValidateSeatCountRejectsNonPositive(t *testing.T) {
	for _, seats := range []int{0, -3} {
		if v := ValidateSeatCount("pro", seats); v.Valid {
			t.Fatalf("%d seats should be invalid", seats)
		}
	}
}

func TestValidateSeatCountAdminUnbounded(t *testing.T) {
	if v := ValidateSeatCount("admin", 10_000); !v.Valid {
		t.Fatalf("admin seats should be unbounded: %s", v.Error)
	}
}
