package controller

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
	"github.com/dmitrijs2005/keyvault/internal/server/storage"
)

// Sign computes the per-request signature: HMAC-SHA256 over the request
// payload with the session key. Clients sign, the server verifies; this is
// the per-request authenticity check, independent of the login handshake.
func Sign(key, payload []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return mac.Sum(nil)
}

// Authenticate resolves the request's auth reference into a caller Context.
// An empty session id yields an anonymous context. Session resolution,
// expiry and signature failures each surface their own code so clients can
// distinguish a revoked session from a stale clock from a corrupt request.
func (c *Controller) Authenticate(ctx context.Context, sessionID string, signature, payload []byte, device *models.DeviceInfo) (*Context, error) {
	if sessionID == "" {
		return &Context{Device: device}, nil
	}

	session := &models.Session{ID: sessionID}
	if err := c.storage.Get(ctx, session); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, common.ErrorInvalidSession
		}
		return nil, err
	}

	now := c.now()
	if session.Expired(now) {
		return nil, common.ErrorSessionExpired
	}

	if !hmac.Equal(Sign(session.Key, payload), signature) {
		return nil, common.ErrorInvalidRequest
	}

	acc, err := c.getAccount(ctx, session.Account)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, common.ErrorInvalidSession
		}
		return nil, err
	}

	session.LastUsed = now
	session.Updated = now
	if device != nil {
		session.Device = device
	}
	acc.UpsertSession(session.Info())

	if err := c.storage.SaveAll(ctx, session, acc); err != nil {
		return nil, err
	}

	return &Context{Session: session, Account: acc, Device: device}, nil
}

// RevokeSession deletes one of the caller's own sessions.
func (c *Controller) RevokeSession(ctx context.Context, actx *Context, id string) error {
	acc, err := requireAuth(actx)
	if err != nil {
		return err
	}

	session := &models.Session{ID: id}
	if err := c.storage.Get(ctx, session); err != nil {
		return err
	}
	if session.Account != acc.ID {
		return common.ErrorInsufficientPermissions
	}

	acc.RemoveSession(id)
	if err := c.storage.Save(ctx, acc); err != nil {
		return err
	}
	return c.storage.Delete(ctx, session)
}

// revokeAllSessions deletes every session of the account and clears its
// summary list. Used by account recovery. Already-gone sessions are skipped.
func (c *Controller) revokeAllSessions(ctx context.Context, acc *models.Account) error {
	for _, info := range acc.Sessions {
		err := c.storage.Delete(ctx, &models.Session{ID: info.ID})
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	acc.Sessions = nil
	return nil
}
