package controller

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
	"github.com/dmitrijs2005/keyvault/internal/server/storage"
)

// GetVault returns the vault if the caller may read it.
func (c *Controller) GetVault(ctx context.Context, actx *Context, id string) (*models.Vault, error) {
	acc, err := requireAuth(actx)
	if err != nil {
		return nil, err
	}
	vault, _, err := c.loadVaultForRead(ctx, acc, id)
	if err != nil {
		return nil, err
	}
	return vault, nil
}

// CreateVault creates a vault inside an org. Private vaults exist only as
// the main vault provisioned with the account, so an ownerless submission
// is rejected.
func (c *Controller) CreateVault(ctx context.Context, actx *Context, submitted *models.Vault) (*models.Vault, error) {
	acc, err := requireAuth(actx)
	if err != nil {
		return nil, err
	}

	if !submitted.Validate() {
		return nil, common.NewError(common.CodeBadRequest, "vault must have exactly one of owner or organization")
	}
	if submitted.Org == "" {
		return nil, common.NewError(common.CodeBadRequest, "vault must belong to an organization")
	}

	org, err := c.getOrg(ctx, submitted.Org)
	if err != nil {
		return nil, err
	}
	role, isMember := org.Role(acc.ID)
	if !isMember {
		return nil, common.ErrorNotFound
	}
	if role != models.RoleOwner && role != models.RoleAdmin {
		return nil, common.ErrorInsufficientPermissions
	}

	if err := checkOrgVaultQuota(org); err != nil {
		return nil, err
	}

	now := c.now()
	vault := &models.Vault{
		ID:            models.NewID(),
		Name:          submitted.Name,
		Org:           org.ID,
		Accessors:     submitted.Accessors,
		EncryptedData: submitted.EncryptedData,
		Revision:      models.NewRevision(),
		Created:       now,
		Updated:       now,
	}
	org.Vaults = append(org.Vaults, models.VaultInfo{ID: vault.ID, Name: vault.Name})
	org.Revision = models.NewRevision()
	org.Updated = now

	if err := c.storage.SaveAll(ctx, vault, org); err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "vault created", "vault", vault.ID, "org", org.ID)
	return vault, nil
}

// UpdateVault applies content changes under the revision guard. The org's
// vault index entry is kept in sync when the name changes.
func (c *Controller) UpdateVault(ctx context.Context, actx *Context, submitted *models.Vault) (*models.Vault, error) {
	acc, err := requireAuth(actx)
	if err != nil {
		return nil, err
	}

	vault, org, err := c.loadVaultForWrite(ctx, acc, submitted.ID)
	if err != nil {
		return nil, err
	}

	if err := checkRevision(vault.Revision, submitted.Revision); err != nil {
		return nil, err
	}

	now := c.now()
	renamed := vault.Name != submitted.Name
	vault.Name = submitted.Name
	vault.EncryptedData = submitted.EncryptedData
	vault.Accessors = submitted.Accessors
	vault.Revision = models.NewRevision()
	vault.Updated = now

	records := []storage.Object{vault}
	if renamed && org != nil {
		for i := range org.Vaults {
			if org.Vaults[i].ID == vault.ID {
				org.Vaults[i].Name = vault.Name
			}
		}
		org.Revision = models.NewRevision()
		org.Updated = now
		records = append(records, org)
	}

	if err := c.storage.SaveAll(ctx, records...); err != nil {
		return nil, err
	}
	return vault, nil
}

// DeleteVault removes an org vault together with its attachments, blobs
// included, and drops every reference to it from the org's members and
// groups. Main vaults are not deletable.
func (c *Controller) DeleteVault(ctx context.Context, actx *Context, id string) error {
	acc, err := requireAuth(actx)
	if err != nil {
		return err
	}

	vault, org, err := c.loadVaultForWrite(ctx, acc, id)
	if err != nil {
		return err
	}
	if org == nil {
		return common.NewError(common.CodeBadRequest, "main vault cannot be deleted")
	}
	role, _ := org.Role(acc.ID)
	if role != models.RoleOwner && role != models.RoleAdmin {
		return common.ErrorInsufficientPermissions
	}

	if err := c.blobs.DeleteAll(ctx, vault.ID); err != nil {
		return err
	}
	for _, attID := range vault.Attachments {
		att := &models.Attachment{ID: attID, Vault: vault.ID}
		if err := c.storage.Delete(ctx, att); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}

	org.RemoveVault(vault.ID)
	org.Revision = models.NewRevision()
	org.Updated = c.now()

	if err := c.storage.SaveAll(ctx, org); err != nil {
		return err
	}
	if err := c.storage.Delete(ctx, vault); err != nil {
		return err
	}

	c.logger.Info(ctx, "vault deleted", "vault", vault.ID, "org", org.ID)
	return nil
}
