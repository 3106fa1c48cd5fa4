package controller

import (
	"context"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
)

// Quota checks are pure boundary predicates evaluated just before a mutation
// is persisted: at exactly the limit an operation succeeds, one past it
// fails. A limit of -1 means unlimited. All checks fail closed.

func withinCount(count, limit int) bool {
	return limit < 0 || count <= limit
}

// checkOrgCountQuota enforces the per-account cap on owned orgs, counting
// the one about to be created.
func (c *Controller) checkOrgCountQuota(ctx context.Context, acc *models.Account) error {
	owned := 0
	for _, orgID := range acc.Orgs {
		org, err := c.getOrg(ctx, orgID)
		if err != nil {
			return err
		}
		if org.Owner == acc.ID {
			owned++
		}
	}
	if !withinCount(owned+1, acc.Quota.Orgs) {
		return common.NewError(common.CodeQuotaExceeded, "account allows at most %d organizations", acc.Quota.Orgs)
	}
	return nil
}

// checkOrgContentQuota enforces the member and group caps against the org's
// state as it is about to be persisted.
func checkOrgContentQuota(org *models.Org) error {
	if !withinCount(len(org.Members), org.Quota.Members) {
		return common.NewError(common.CodeQuotaExceeded, "organization allows at most %d members", org.Quota.Members)
	}
	if !withinCount(len(org.Groups), org.Quota.Groups) {
		return common.NewError(common.CodeQuotaExceeded, "organization allows at most %d groups", org.Quota.Groups)
	}
	return nil
}

// checkOrgVaultQuota enforces the vault cap, counting the one about to be
// created.
func checkOrgVaultQuota(org *models.Org) error {
	if !withinCount(len(org.Vaults)+1, org.Quota.Vaults) {
		return common.NewError(common.CodeQuotaExceeded, "organization allows at most %d vaults", org.Quota.Vaults)
	}
	return nil
}

// storageScope resolves the storage quota scope of a vault: all vaults of
// the owning org for a shared vault, or the single private vault itself.
// It returns the vault ids in scope and the applicable byte limit.
func (c *Controller) storageScope(ctx context.Context, vault *models.Vault, org *models.Org) ([]string, int64, error) {
	if org != nil {
		ids := make([]string, 0, len(org.Vaults))
		for _, v := range org.Vaults {
			ids = append(ids, v.ID)
		}
		return ids, org.Quota.Storage, nil
	}

	owner, err := c.getAccount(ctx, vault.Owner)
	if err != nil {
		return nil, 0, err
	}
	return []string{vault.ID}, owner.Quota.Storage, nil
}

// checkStorageQuota verifies that adding size bytes to the vault's scope
// stays within the scope's storage quota.
func (c *Controller) checkStorageQuota(ctx context.Context, vault *models.Vault, org *models.Org, size int64) error {
	ids, limit, err := c.storageScope(ctx, vault, org)
	if err != nil {
		return err
	}
	if limit < 0 {
		return nil
	}

	var used int64
	for _, id := range ids {
		u, err := c.blobs.Usage(ctx, id)
		if err != nil {
			return err
		}
		used += u
	}

	if used+size > limit {
		return common.NewError(common.CodeQuotaExceeded, "storage quota of %d bytes exceeded", limit)
	}
	return nil
}
