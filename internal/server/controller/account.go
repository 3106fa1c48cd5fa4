package controller

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
	"github.com/dmitrijs2005/keyvault/internal/server/storage"
)

// GetAccount returns the caller's own account.
func (c *Controller) GetAccount(ctx context.Context, actx *Context) (*models.Account, error) {
	return requireAuth(actx)
}

// CreateAccount provisions a new account: the auth record (verifier), the
// account itself and its private main vault, persisted as one unit. The
// caller must have proven control of the email via a verification token.
func (c *Controller) CreateAccount(ctx context.Context, actx *Context, account *models.Account, auth *models.Auth, verificationToken string) (*models.Account, error) {
	email := strings.TrimSpace(auth.Email)
	if email == "" || !strings.EqualFold(email, account.Email) {
		return nil, common.NewError(common.CodeBadRequest, "account and auth emails do not match")
	}

	if err := c.verifier.CheckToken(ctx, email, verificationToken); err != nil {
		return nil, err
	}

	authID := models.AuthID(email)
	existing := &models.Auth{ID: authID}
	if err := c.storage.Get(ctx, existing); err == nil {
		return nil, common.ErrorAccountExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	now := c.now()

	account.ID = models.NewID()
	account.Email = email
	account.Revision = models.NewRevision()
	account.Orgs = nil
	account.Sessions = nil
	account.Quota = c.accountQuota
	account.Created = now
	account.Updated = now

	vault := &models.Vault{
		ID:       models.NewID(),
		Name:     "Main",
		Owner:    account.ID,
		Revision: models.NewRevision(),
		Created:  now,
		Updated:  now,
	}
	account.MainVault = vault.ID

	record := &models.Auth{
		ID:        authID,
		Email:     email,
		Account:   account.ID,
		Verifier:  auth.Verifier,
		KeyParams: auth.KeyParams,
		Created:   now,
		Updated:   now,
	}
	record.TrustDevice(actx.device())

	if err := c.storage.SaveAll(ctx, account, vault, record); err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "account created", "account", account.ID)
	return account, nil
}

// UpdateAccount applies the client-writable account fields under the
// revision guard. A display-name change is propagated into every org the
// account belongs to, since member names are denormalized into org state.
func (c *Controller) UpdateAccount(ctx context.Context, actx *Context, submitted *models.Account) (*models.Account, error) {
	acc, err := requireAuth(actx)
	if err != nil {
		return nil, err
	}

	if err := checkRevision(acc.Revision, submitted.Revision); err != nil {
		return nil, err
	}

	nameChanged := submitted.Name != acc.Name
	now := c.now()

	acc.Name = submitted.Name
	acc.PublicKey = submitted.PublicKey
	acc.KeyParams = submitted.KeyParams
	acc.EncryptedProfile = submitted.EncryptedProfile
	acc.Revision = models.NewRevision()
	acc.Updated = now

	records := []storage.Object{acc}

	if nameChanged {
		for _, orgID := range acc.Orgs {
			org, err := c.getOrg(ctx, orgID)
			if err != nil {
				return nil, err
			}
			member := org.Member(acc.ID)
			if member == nil {
				continue
			}
			member.Name = acc.Name
			member.Updated = now
			org.Revision = models.NewRevision()
			org.Updated = now
			records = append(records, org)
		}
	}

	if err := c.storage.SaveAll(ctx, records...); err != nil {
		return nil, err
	}
	return acc, nil
}

// RecoverAccount resets an account whose master key is lost: new keys and
// profile, a freshly provisioned main vault under the same id (wrapped-key
// history is gone with the old master key), every session revoked and the
// requesting device re-trusted. In every org where the account is not the
// owner its membership is suspended until re-confirmed.
func (c *Controller) RecoverAccount(ctx context.Context, actx *Context, submitted *models.Account, auth *models.Auth, verificationToken string) (*models.Account, error) {
	email := strings.TrimSpace(auth.Email)

	if err := c.verifier.CheckToken(ctx, email, verificationToken); err != nil {
		return nil, err
	}

	record := &models.Auth{ID: models.AuthID(email)}
	if err := c.storage.Get(ctx, record); err != nil {
		return nil, err
	}

	acc, err := c.getAccount(ctx, record.Account)
	if err != nil {
		return nil, err
	}

	if err := c.revokeAllSessions(ctx, acc); err != nil {
		return nil, err
	}

	now := c.now()

	acc.Name = submitted.Name
	acc.PublicKey = submitted.PublicKey
	acc.KeyParams = submitted.KeyParams
	acc.EncryptedProfile = submitted.EncryptedProfile
	acc.Revision = models.NewRevision()
	acc.Updated = now

	vault := &models.Vault{
		ID:       acc.MainVault,
		Name:     "Main",
		Owner:    acc.ID,
		Revision: models.NewRevision(),
		Created:  now,
		Updated:  now,
	}

	record.Verifier = auth.Verifier
	record.KeyParams = auth.KeyParams
	record.TrustedDevices = nil
	record.TrustDevice(actx.device())
	record.Updated = now

	records := []storage.Object{acc, vault, record}

	for _, orgID := range acc.Orgs {
		org, err := c.getOrg(ctx, orgID)
		if err != nil {
			return nil, err
		}
		if org.Owner == acc.ID {
			continue
		}
		member := org.Member(acc.ID)
		if member == nil || member.Role == models.RoleSuspended {
			continue
		}
		member.Role = models.RoleSuspended
		member.Updated = now
		org.Revision = models.NewRevision()
		org.Updated = now
		records = append(records, org)
	}

	if err := c.storage.SaveAll(ctx, records...); err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "account recovered", "account", acc.ID)
	return acc, nil
}
