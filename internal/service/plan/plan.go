// Package plan defines per-subscription-plan limits and the gate checks
// enforced by the bulk-send and webhook-create paths.
package plan

import (
	"errors"
	"fmt"

	"github.com/projectinsight/insight/internal/domain"
)

// ErrLimitExceeded indicates an operation would exceed a plan limit.
var ErrLimitExceeded = errors.New("plan limit exceeded")

// Limits holds the feature ceilings for one plan. Zero means unlimited.
type Limits struct {
	MaxContacts          int
	MaxRecipientsPerSend int
	MaxWebhooks          int
}

var planLimits = map[domain.SubscriptionPlan]Limits{
	domain.PlanFree:       {MaxContacts: 250, MaxRecipientsPerSend: 100, MaxWebhooks: 1},
	domain.PlanBasic:      {MaxContacts: 2500, MaxRecipientsPerSend: 1000, MaxWebhooks: 3},
	domain.PlanPremium:    {MaxContacts: 25000, MaxRecipientsPerSend: 10000, MaxWebhooks: 10},
	domain.PlanEnterprise: {},
}

// For returns the limits for the given plan. Unknown plans get free-tier
// limits.
func For(p domain.SubscriptionPlan) Limits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return planLimits[domain.PlanFree]
}

// CheckRecipients rejects sends targeting more contacts than the plan allows.
func CheckRecipients(p domain.SubscriptionPlan, count int) error {
	l := For(p)
	if l.MaxRecipientsPerSend > 0 && count > l.MaxRecipientsPerSend {
		return fmt.Errorf("%w: %d recipients exceeds the %s plan limit of %d per send",
			ErrLimitExceeded, count, p, l.MaxRecipientsPerSend)
	}
	return nil
}

// CheckWebhooks rejects creating a webhook beyond the plan's endpoint count.
func CheckWebhooks(p domain.SubscriptionPlan, existing int) error {
	l := For(p)
	if l.MaxWebhooks > 0 && existing >= l.MaxWebhooks {
		return fmt.Errorf("%w: the %s plan allows %d webhook endpoints",
			ErrLimitExceeded, p, l.MaxWebhooks)
	}
	return nil
}
