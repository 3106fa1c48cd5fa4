package controller

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
	"github.com/dmitrijs2005/keyvault/internal/server/srp"
	"github.com/dmitrijs2005/keyvault/internal/server/storage"
	gocache "github.com/patrickmn/go-cache"
)

// InitAuthResult is what a client needs to derive its login proof: the
// server's public ephemeral value and the auth metadata stored at signup.
type InitAuthResult struct {
	Account         string              `json:"account"`
	KeyParams       json.RawMessage     `json:"keyParams,omitempty"`
	ServerEphemeral []byte              `json:"serverEphemeral"`
	TrustedDevices  []models.DeviceInfo `json:"trustedDevices"`
}

// CreateSessionResult carries the new session (key stripped) and the server
// proof the client uses to authenticate the server in turn.
type CreateSessionResult struct {
	Session     *models.Session `json:"session"`
	ServerProof []byte          `json:"serverProof"`
}

// InitAuth starts an SRP negotiation for the email's account.
//
// Untrusted devices must present a valid email-verification token before
// anything about the email is disclosed; only after that proof does a
// missing auth record surface as NOT_FOUND. This ordering is what prevents
// account enumeration by unverified callers.
func (c *Controller) InitAuth(ctx context.Context, actx *Context, email, verificationToken string) (*InitAuthResult, error) {
	auth := &models.Auth{ID: models.AuthID(email)}
	getErr := c.storage.Get(ctx, auth)
	if getErr != nil && !errors.Is(getErr, storage.ErrNotFound) {
		return nil, getErr
	}

	trusted := getErr == nil && auth.IsTrusted(actx.device())
	if !trusted {
		if verificationToken == "" {
			return nil, common.ErrorEmailVerificationRequired
		}
		if err := c.verifier.CheckToken(ctx, email, verificationToken); err != nil {
			return nil, err
		}
	}

	if getErr != nil {
		return nil, common.ErrorNotFound
	}

	exchange, err := c.newExchange(auth.Verifier)
	if err != nil {
		return nil, err
	}

	c.storePending(auth.Account, exchange)

	return &InitAuthResult{
		Account:         auth.Account,
		KeyParams:       auth.KeyParams,
		ServerEphemeral: exchange.Ephemeral(),
		TrustedDevices:  auth.TrustedDevices,
	}, nil
}

// storePending records the negotiation for the account. Last negotiation
// wins: a concurrent attempt for the same account replaces the earlier
// exchange state.
func (c *Controller) storePending(accountID string, exchange srp.Exchange) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pending.Set(accountID, exchange, gocache.DefaultExpiration)
}

// takePending removes and returns the pending negotiation, so each exchange
// is owned by exactly one completion attempt. Exchange state is not safe for
// concurrent use; handing the same instance to two callers would let one
// verify a proof against the other's ephemeral.
func (c *Controller) takePending(accountID string) (srp.Exchange, bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	entry, ok := c.pending.Get(accountID)
	if !ok {
		return nil, false
	}
	c.pending.Delete(accountID)
	return entry.(srp.Exchange), true
}

// CreateSession completes the negotiation started by InitAuth. The pending
// exchange is consumed up front, success or not, so a failed or replayed
// attempt has to restart from InitAuth. Any break in the expected sequence
// (no pending exchange, bad ephemeral, wrong proof) uniformly yields
// INVALID_CREDENTIALS.
func (c *Controller) CreateSession(ctx context.Context, actx *Context, accountID string, clientEphemeral, clientProof []byte) (*CreateSessionResult, error) {
	exchange, ok := c.takePending(accountID)
	if !ok {
		return nil, common.ErrorInvalidCredentials
	}

	if err := exchange.SetClientEphemeral(clientEphemeral); err != nil {
		return nil, common.ErrorInvalidCredentials
	}

	match, err := exchange.VerifyClientProof(clientProof)
	if err != nil {
		return nil, common.ErrorInvalidCredentials
	}
	if !match {
		return nil, common.ErrorInvalidCredentials
	}

	key, err := exchange.SessionKey()
	if err != nil {
		return nil, err
	}
	serverProof, err := exchange.ServerProof()
	if err != nil {
		return nil, err
	}

	acc, err := c.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	session := &models.Session{
		ID:       models.NewID(),
		Account:  acc.ID,
		Key:      key,
		Device:   actx.device(),
		Created:  now,
		Updated:  now,
		LastUsed: now,
		Expires:  now.Add(c.sessionValidity),
	}
	acc.UpsertSession(session.Info())

	records := []storage.Object{session, acc}

	// first successful login from a new device marks it trusted
	if device := actx.device(); device != nil {
		auth := &models.Auth{ID: models.AuthID(acc.Email)}
		if err := c.storage.Get(ctx, auth); err != nil {
			return nil, err
		}
		if !auth.IsTrusted(device) {
			auth.TrustDevice(device)
			auth.Updated = now
			records = append(records, auth)
		}
	}

	if err := c.storage.SaveAll(ctx, records...); err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "session created", "account", acc.ID, "session", session.ID)

	return &CreateSessionResult{Session: session.Stripped(), ServerProof: serverProof}, nil
}

// UpdateAuth replaces the caller's own auth record (new verifier and key
// params, typically after a master-password change). The trusted-device list
// is carried over from the stored record.
func (c *Controller) UpdateAuth(ctx context.Context, actx *Context, submitted *models.Auth) error {
	acc, err := requireAuth(actx)
	if err != nil {
		return err
	}

	if !strings.EqualFold(submitted.Email, acc.Email) {
		return common.ErrorInsufficientPermissions
	}

	auth := &models.Auth{ID: models.AuthID(acc.Email)}
	if err := c.storage.Get(ctx, auth); err != nil {
		return err
	}

	auth.Verifier = submitted.Verifier
	auth.KeyParams = submitted.KeyParams
	auth.Updated = c.now()

	return c.storage.Save(ctx, auth)
}
