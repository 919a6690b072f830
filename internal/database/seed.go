package database

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/bkaraoglu/timberline-api/internal/models"
	"github.com/bkaraoglu/timberline-api/internal/roles"
)

// DefaultPlans builds the purchasable catalog from the role capability
// table, so the advertised limits can never drift from the enforced ones.
func DefaultPlans() []models.SubscriptionPlan {
	type planSpec struct {
		role        roles.Role
		price       int64
		yearlyPrice int64
		description string
		sortOrder   int
	}
	specs := []planSpec{
		{roles.Free, 0, 0, "Browse the marketplace and manage your profile.", 0},
		{roles.Basic, 990, 9900, "Create listings and use the API.", 1},
		{roles.Premium, 2990, 29900, "Full marketplace tooling with analytics.", 2},
		{roles.Enterprise, 9990, 99900, "Unlimited usage for large operations.", 3},
	}

	plans := make([]models.SubscriptionPlan, 0, len(specs))
	for _, s := range specs {
		features, _ := json.Marshal(roles.Abilities(s.role))
		plans = append(plans, models.SubscriptionPlan{
			Slug:                string(s.role),
			Name:                s.role.Label(),
			Description:         s.description,
			PriceCents:          s.price,
			YearlyPriceCents:    s.yearlyPrice,
			Features:            datatypes.JSON(features),
			APILimit:            roles.RateLimit(s.role),
			StorageLimitMB:      roles.StorageLimitMB(s.role),
			TimberListingsLimit: roles.FeatureLimit(s.role, roles.FeatureTimberListings),
			ServicesLimit:       roles.FeatureLimit(s.role, roles.FeatureServices),
			IsActive:            true,
			SortOrder:           s.sortOrder,
		})
	}
	return plans
}
