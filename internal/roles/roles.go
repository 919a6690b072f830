package roles

// Role is the subscription tier of a user. The set is closed; anything else
// is rejected at the boundary.
type Role string

const (
	Free       Role = "free"
	Basic      Role = "basic"
	Premium    Role = "premium"
	Enterprise Role = "enterprise"
	Admin      Role = "admin"
)

// Feature keys recognized by the capability table.
const (
	FeatureTimberListings  = "timber_listings"
	FeatureServices        = "services"
	FeatureCompanyProfile  = "company_profile"
	FeatureAPIAccess       = "api_access"
	FeatureAnalytics       = "analytics"
	FeaturePrioritySupport = "priority_support"
)

// Wildcard grants every ability. Admin tokens additionally carry the
// admin-namespace wildcard.
const (
	Wildcard      = "*"
	AdminWildcard = "admin:*"
)

// Capability is everything a role grants. RateLimit is requests per hour and
// StorageLimitMB is megabytes; 0 means unlimited for both. Feature limits use
// -1 for unlimited and 0 for disallowed.
type Capability struct {
	Label          string
	Abilities      []string
	RateLimit      int
	StorageLimitMB int64
	FeatureLimits  map[string]int
}

// capabilities is a plain lookup table built once at init. Role behavior is
// pure data, so changing a user's role takes effect on the next resolution
// without touching any stored state.
var capabilities = map[Role]Capability{
	Free: {
		Label:          "Free",
		Abilities:      []string{"timber:read", "profile:read", "profile:update"},
		RateLimit:      100,
		StorageLimitMB: 10,
		FeatureLimits: map[string]int{
			FeatureTimberListings:  2,
			FeatureServices:        0,
			FeatureCompanyProfile:  0,
			FeatureAPIAccess:       0,
			FeatureAnalytics:       0,
			FeaturePrioritySupport: 0,
		},
	},
	Basic: {
		Label: "Basic",
		Abilities: []string{
			"timber:read",
			"timber:create",
			"timber:update-own",
			"profile:read",
			"profile:update",
			"company:read",
			"services:read",
			"api:access",
		},
		RateLimit:      500,
		StorageLimitMB: 100,
		FeatureLimits: map[string]int{
			FeatureTimberListings:  5,
			FeatureServices:        0,
			FeatureCompanyProfile:  0,
			FeatureAPIAccess:       -1,
			FeatureAnalytics:       0,
			FeaturePrioritySupport: 0,
		},
	},
	Premium: {
		Label: "Premium",
		Abilities: []string{
			"timber:read",
			"timber:create",
			"timber:update-own",
			"timber:delete-own",
			"profile:read",
			"profile:update",
			"company:read",
			"company:create",
			"company:update-own",
			"services:read",
			"services:create",
			"services:update-own",
			"api:access",
			"analytics:read",
		},
		RateLimit:      2000,
		StorageLimitMB: 1024,
		FeatureLimits: map[string]int{
			FeatureTimberListings:  25,
			FeatureServices:        10,
			FeatureCompanyProfile:  -1,
			FeatureAPIAccess:       -1,
			FeatureAnalytics:       -1,
			FeaturePrioritySupport: 0,
		},
	},
	Enterprise: {
		Label:          "Enterprise",
		Abilities:      []string{Wildcard},
		RateLimit:      0,
		StorageLimitMB: 0,
		FeatureLimits: map[string]int{
			FeatureTimberListings:  -1,
			FeatureServices:        -1,
			FeatureCompanyProfile:  -1,
			FeatureAPIAccess:       -1,
			FeatureAnalytics:       -1,
			FeaturePrioritySupport: -1,
		},
	},
	Admin: {
		Label:          "Admin",
		Abilities:      []string{Wildcard, AdminWildcard},
		RateLimit:      0,
		StorageLimitMB: 0,
		FeatureLimits: map[string]int{
			FeatureTimberListings:  -1,
			FeatureServices:        -1,
			FeatureCompanyProfile:  -1,
			FeatureAPIAccess:       -1,
			FeatureAnalytics:       -1,
			FeaturePrioritySupport: -1,
		},
	},
}

// order of paid tiers for upgrade-option resolution.
var tierOrder = []Role{Free, Basic, Premium, Enterprise}

func (r Role) Valid() bool {
	_, ok := capabilities[r]
	return ok
}

func (r Role) Label() string {
	return capabilities[r].Label
}

func (r Role) IsPaid() bool {
	return r == Basic || r == Premium || r == Enterprise
}

// Abilities returns a copy so callers cannot mutate the table.
func Abilities(r Role) []string {
	src := capabilities[r].Abilities
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// RateLimit returns the hourly request budget for the role, 0 for unlimited.
func RateLimit(r Role) int {
	return capabilities[r].RateLimit
}

// StorageLimitMB returns the storage budget in megabytes, 0 for unlimited.
func StorageLimitMB(r Role) int64 {
	return capabilities[r].StorageLimitMB
}

// FeatureLimit returns the numeric limit for a feature: -1 unlimited,
// 0 disallowed, otherwise the cap. Unknown features are disallowed.
func FeatureLimit(r Role, feature string) int {
	limit, ok := capabilities[r].FeatureLimits[feature]
	if !ok {
		return 0
	}
	return limit
}

// FeatureLimits returns a copy of the role's full feature limit table.
func FeatureLimits(r Role) map[string]int {
	src := capabilities[r].FeatureLimits
	out := make(map[string]int, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// HasFeatureAccess reports whether the role can use the feature at all.
func HasFeatureAccess(r Role, feature string) bool {
	return FeatureLimit(r, feature) != 0
}

// UpgradeOptions lists the paid tiers above the current role. Admin has none.
func UpgradeOptions(r Role) []Role {
	if r == Admin {
		return nil
	}
	var out []Role
	found := false
	for _, tier := range tierOrder {
		if found {
			out = append(out, tier)
		}
		if tier == r {
			found = true
		}
	}
	return out
}

// UpgradeOptionsFor narrows UpgradeOptions to tiers that actually grant
// the feature.
func UpgradeOptionsFor(r Role, feature string) []Role {
	var out []Role
	for _, tier := range UpgradeOptions(r) {
		if HasFeatureAccess(tier, feature) {
			out = append(out, tier)
		}
	}
	return out
}

// All returns the closed role set in tier order, admin last.
func All() []Role {
	return []Role{Free, Basic, Premium, Enterprise, Admin}
}
