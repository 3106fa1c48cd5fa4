package controller

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
)

// Plan is a purchasable quota tier.
type Plan struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Account models.AccountQuota `json:"account"`
	Org     models.OrgQuota     `json:"org"`
}

// BillingParams carries provider-specific payment details, opaque to the
// core. OrgID is empty for personal plans.
type BillingParams struct {
	Plan    string          `json:"plan"`
	OrgID   string          `json:"orgId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Billing is the optional payments backend. When no provider is
// configured the billing operations report NOT_SUPPORTED.
type Billing interface {
	Plans(ctx context.Context) ([]Plan, error)
	Apply(ctx context.Context, acc *models.Account, params *BillingParams) error
}

var errBillingNotConfigured = common.NewError(common.CodeNotSupported, "billing is not configured on this server")

// GetPlans lists the plans offered by the configured billing provider.
func (c *Controller) GetPlans(ctx context.Context, actx *Context) ([]Plan, error) {
	if _, err := requireAuth(actx); err != nil {
		return nil, err
	}
	if c.billing == nil {
		return nil, errBillingNotConfigured
	}
	return c.billing.Plans(ctx)
}

// UpdateBilling forwards payment details to the billing provider. Quota
// changes take effect through the provider's Apply implementation.
func (c *Controller) UpdateBilling(ctx context.Context, actx *Context, params *BillingParams) (*models.Account, error) {
	acc, err := requireAuth(actx)
	if err != nil {
		return nil, err
	}
	if c.billing == nil {
		return nil, errBillingNotConfigured
	}
	if err := c.billing.Apply(ctx, acc, params); err != nil {
		return nil, err
	}
	return acc, nil
}
