package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionPlan enumerates the available subscription tiers.
type SubscriptionPlan string

const (
	PlanFree       SubscriptionPlan = "free"
	PlanBasic      SubscriptionPlan = "basic"
	PlanPremium    SubscriptionPlan = "premium"
	PlanEnterprise SubscriptionPlan = "enterprise"
)

// Valid reports whether the plan is a known tier.
func (p SubscriptionPlan) Valid() bool {
	switch p {
	case PlanFree, PlanBasic, PlanPremium, PlanEnterprise:
		return true
	}
	return false
}

// Organization represents a tenant. Every other entity in the system is
// scoped to exactly one organization.
type Organization struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	Name             string           `json:"name" db:"name"`
	SubscriptionPlan SubscriptionPlan `json:"subscription_plan" db:"subscription_plan"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}
