package controller

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
	"github.com/dmitrijs2005/keyvault/internal/server/storage"
)

// AttachmentData couples attachment metadata with its encrypted blob.
type AttachmentData struct {
	Attachment *models.Attachment `json:"attachment"`
	Data       []byte             `json:"data"`
}

// CreateAttachment stores an encrypted blob in a vault the caller may
// write to. The id is server-assigned and the upload counts against the
// storage quota of the vault's scope.
func (c *Controller) CreateAttachment(ctx context.Context, actx *Context, vaultID string, data []byte) (*models.Attachment, error) {
	acc, err := requireAuth(actx)
	if err != nil {
		return nil, err
	}

	vault, org, err := c.loadVaultForWrite(ctx, acc, vaultID)
	if err != nil {
		return nil, err
	}

	size := int64(len(data))
	if err := c.checkStorageQuota(ctx, vault, org, size); err != nil {
		return nil, err
	}

	now := c.now()
	att := &models.Attachment{
		ID:      models.NewID(),
		Vault:   vault.ID,
		Size:    size,
		Created: now,
	}

	if err := c.blobs.Put(ctx, vault.ID, att.ID, data); err != nil {
		return nil, err
	}

	vault.AddAttachment(att.ID)
	vault.Revision = models.NewRevision()
	vault.Updated = now

	if err := c.storage.SaveAll(ctx, att, vault); err != nil {
		return nil, err
	}
	return att, nil
}

// GetAttachment returns the attachment with its blob, read access required.
func (c *Controller) GetAttachment(ctx context.Context, actx *Context, vaultID, id string) (*AttachmentData, error) {
	acc, err := requireAuth(actx)
	if err != nil {
		return nil, err
	}

	vault, _, err := c.loadVaultForRead(ctx, acc, vaultID)
	if err != nil {
		return nil, err
	}

	att := &models.Attachment{ID: id, Vault: vault.ID}
	if err := c.storage.Get(ctx, att); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	if att.Vault != vault.ID {
		return nil, common.ErrorNotFound
	}

	data, err := c.blobs.Get(ctx, vault.ID, att.ID)
	if err != nil {
		return nil, err
	}
	return &AttachmentData{Attachment: att, Data: data}, nil
}

// DeleteAttachment removes the blob and its metadata, write access required.
func (c *Controller) DeleteAttachment(ctx context.Context, actx *Context, vaultID, id string) error {
	acc, err := requireAuth(actx)
	if err != nil {
		return err
	}

	vault, _, err := c.loadVaultForWrite(ctx, acc, vaultID)
	if err != nil {
		return err
	}

	att := &models.Attachment{ID: id, Vault: vault.ID}
	if err := c.storage.Get(ctx, att); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return common.ErrorNotFound
		}
		return err
	}

	if err := c.blobs.Delete(ctx, vault.ID, att.ID); err != nil {
		return err
	}
	if err := c.storage.Delete(ctx, att); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	vault.RemoveAttachment(att.ID)
	vault.Revision = models.NewRevision()
	vault.Updated = c.now()

	return c.storage.SaveAll(ctx, vault)
}
