package tier

// Definition is the full set of limits and flags for one tier.
// A zero limit means unlimited.
type Definition struct {
	Tier Tier

	SeatMin int
	SeatMax int

	TokenAllowance    int64
	AIActionAllowance int64
	DocAllowance      int64

	BulkOperationLimit int
	BulkSplitLimit     int
	MaxSplitChildren   int
	MaxPagesPerUpload  int
	RequestsPerMinute  int

	StoryUpdatesEnabled bool
	ApprovalsRequired   bool

	// UpgradeTier is suggested when a limit is hit. Empty means top tier.
	UpgradeTier Tier
}

var catalog = map[Tier]Definition{
	TierStarter: {
		Tier:                TierStarter,
		SeatMin:             1,
		SeatMax:             2,
		TokenAllowance:      50_000,
		AIActionAllowance:   100,
		DocAllowance:        10,
		BulkOperationLimit:  20,
		BulkSplitLimit:      5,
		MaxSplitChildren:    3,
		MaxPagesPerUpload:   20,
		RequestsPerMinute:   30,
		StoryUpdatesEnabled: false,
		ApprovalsRequired:   false,
		UpgradeTier:         TierPro,
	},
	TierPro: {
		Tier:                TierPro,
		SeatMin:             1,
		SeatMax:             4,
		TokenAllowance:      200_000,
		AIActionAllowance:   500,
		DocAllowance:        50,
		BulkOperationLimit:  50,
		BulkSplitLimit:      10,
		MaxSplitChildren:    5,
		MaxPagesPerUpload:   50,
		RequestsPerMinute:   60,
		StoryUpdatesEnabled: true,
		ApprovalsRequired:   false,
		UpgradeTier:         TierTeam,
	},
	TierTeam: {
		Tier:                TierTeam,
		SeatMin:             5,
		SeatMax:             25,
		TokenAllowance:      1_000_000,
		AIActionAllowance:   2_500,
		DocAllowance:        250,
		BulkOperationLimit:  100,
		BulkSplitLimit:      20,
		MaxSplitChildren:    8,
		MaxPagesPerUpload:   150,
		RequestsPerMinute:   120,
		StoryUpdatesEnabled: true,
		ApprovalsRequired:   true,
		UpgradeTier:         TierEnterprise,
	},
	TierEnterprise: {
		Tier:                TierEnterprise,
		SeatMin:             5,
		SeatMax:             500,
		TokenAllowance:      5_000_000,
		AIActionAllowance:   10_000,
		DocAllowance:        1_000,
		BulkOperationLimit:  250,
		BulkSplitLimit:      50,
		MaxSplitChildren:    10,
		MaxPagesPerUpload:   500,
		RequestsPerMinute:   300,
		StoryUpdatesEnabled: true,
		ApprovalsRequired:   true,
		UpgradeTier:         "",
	},
	TierAdmin: {
		Tier:                TierAdmin,
		SeatMin:             1,
		SeatMax:             0,
		TokenAllowance:      0,
		AIActionAllowance:   0,
		DocAllowance:        0,
		BulkOperationLimit:  500,
		BulkSplitLimit:      100,
		MaxSplitChildren:    20,
		MaxPagesPerUpload:   1_000,
		RequestsPerMinute:   600,
		StoryUpdatesEnabled: true,
		ApprovalsRequired:   false,
		UpgradeTier:         "",
	},
}

// GetTierConfig returns the definition for a tier key. Legacy and unknown
// keys resolve through Resolve, so this never fails.
func GetTierConfig(raw string) Definition {
	return catalog[Resolve(raw)]
}
