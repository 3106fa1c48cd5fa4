package controller

import (
	"context"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
)

// Vault capability resolution.
//
// A private vault is readable and writable by its owning account only. For
// an org vault, owners and admins hold full access to every vault in the
// org; a plain member holds whatever its direct assignments and the
// assignments of its groups grant, where any non-readonly assignment grants
// write. Suspended members hold nothing.

func memberAssignments(org *models.Org, member *models.Member) []models.VaultAssignment {
	assignments := append([]models.VaultAssignment(nil), member.Vaults...)
	for _, name := range member.Groups {
		if g := org.Group(name); g != nil {
			assignments = append(assignments, g.Vaults...)
		}
	}
	return assignments
}

func canReadVault(accountID string, vault *models.Vault, org *models.Org) bool {
	if vault.Owner != "" {
		return vault.Owner == accountID
	}
	if org == nil || org.ID != vault.Org {
		return false
	}

	role, isMember := org.Role(accountID)
	switch role {
	case models.RoleOwner, models.RoleAdmin:
		return isMember
	case models.RoleSuspended:
		return false
	}

	member := org.Member(accountID)
	if member == nil {
		return false
	}
	for _, a := range memberAssignments(org, member) {
		if a.ID == vault.ID {
			return true
		}
	}
	return false
}

func canWriteVault(accountID string, vault *models.Vault, org *models.Org) bool {
	if vault.Owner != "" {
		return vault.Owner == accountID
	}
	if org == nil || org.ID != vault.Org {
		return false
	}

	role, isMember := org.Role(accountID)
	switch role {
	case models.RoleOwner, models.RoleAdmin:
		return isMember
	case models.RoleSuspended:
		return false
	}

	member := org.Member(accountID)
	if member == nil {
		return false
	}
	for _, a := range memberAssignments(org, member) {
		if a.ID == vault.ID && !a.ReadOnly {
			return true
		}
	}
	return false
}

// vaultOrg loads the org of a shared vault; nil for private vaults.
func (c *Controller) vaultOrg(ctx context.Context, vault *models.Vault) (*models.Org, error) {
	if vault.Org == "" {
		return nil, nil
	}
	return c.getOrg(ctx, vault.Org)
}

// loadVaultForRead fetches a vault and enforces read access. Both a missing
// vault and a vault the caller may not see yield NOT_FOUND, so existence is
// never disclosed to non-members.
func (c *Controller) loadVaultForRead(ctx context.Context, acc *models.Account, id string) (*models.Vault, *models.Org, error) {
	vault := &models.Vault{ID: id}
	if err := c.storage.Get(ctx, vault); err != nil {
		return nil, nil, err
	}

	org, err := c.vaultOrg(ctx, vault)
	if err != nil {
		return nil, nil, err
	}

	if !canReadVault(acc.ID, vault, org) {
		return nil, nil, common.ErrorNotFound
	}
	return vault, org, nil
}

// loadVaultForWrite additionally enforces write capability. Existence has
// been established by the read check, so a write refusal is a permissions
// failure, not NOT_FOUND.
func (c *Controller) loadVaultForWrite(ctx context.Context, acc *models.Account, id string) (*models.Vault, *models.Org, error) {
	vault, org, err := c.loadVaultForRead(ctx, acc, id)
	if err != nil {
		return nil, nil, err
	}
	if !canWriteVault(acc.ID, vault, org) {
		return nil, nil, common.ErrorInsufficientPermissions
	}
	return vault, org, nil
}
