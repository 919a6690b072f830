package dto

import (
	"time"

	"github.com/bkaraoglu/timberline-api/internal/roles"
)

type UpdateProfileRequest struct {
	Name        string     `json:"name,omitempty"`
	Surname     string     `json:"surname,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Avatar      string     `json:"avatar,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
}

type UpdateRoleRequest struct {
	Role roles.Role `json:"role"`
}

type UsageResponse struct {
	APICallsThisHour int        `json:"api_calls_this_hour"`
	APICallsResetAt  *time.Time `json:"api_calls_reset_at,omitempty"`
	TotalAPICalls    int64      `json:"total_api_calls"`
	CallsToday       int64      `json:"calls_today"`
	CallsThisMonth   int64      `json:"calls_this_month"`
	StorageUsedBytes int64      `json:"storage_used_bytes"`
	StoragePercent   float64    `json:"storage_percent"`
}

type LimitsResponse struct {
	Role           roles.Role     `json:"role"`
	RoleLabel      string         `json:"role_label"`
	Abilities      []string       `json:"abilities"`
	RateLimit      int            `json:"rate_limit_per_hour"`
	StorageLimitMB int64          `json:"storage_limit_mb"`
	FeatureLimits  map[string]int `json:"feature_limits"`
}
