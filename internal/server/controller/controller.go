// Package controller implements the server's API operations: the SRP login
// protocol, session lifecycle, account/org/vault management, invites and
// attachment metadata. Each operation is a stateless per-request method on
// Controller; the only cross-request state is the TTL-bounded map of pending
// SRP negotiations.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/logging"
	"github.com/dmitrijs2005/keyvault/internal/server/blob"
	"github.com/dmitrijs2005/keyvault/internal/server/mail"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
	"github.com/dmitrijs2005/keyvault/internal/server/srp"
	"github.com/dmitrijs2005/keyvault/internal/server/storage"
	"github.com/dmitrijs2005/keyvault/internal/server/verification"
	gocache "github.com/patrickmn/go-cache"
)

// Params collects the collaborators and settings a Controller needs.
type Params struct {
	Storage      storage.Storage
	Blobs        blob.Store
	Mailer       mail.Sender
	Verification *verification.Engine
	Billing      Billing // optional
	Logger       logging.Logger

	SessionValidity time.Duration
	PendingAuthTTL  time.Duration

	AccountQuota models.AccountQuota
	OrgQuota     models.OrgQuota
}

// Controller orchestrates all API operations over the injected ports.
type Controller struct {
	storage  storage.Storage
	blobs    blob.Store
	mailer   mail.Sender
	verifier *verification.Engine
	billing  Billing
	logger   logging.Logger

	// pending SRP negotiations keyed by account id. Entries expire after
	// PendingAuthTTL so an abandoned handshake cannot accumulate memory;
	// a second initAuth for the same account overwrites the first.
	// pendingMu serializes replace and take so an exchange is never
	// handed to two completion attempts.
	pending   *gocache.Cache
	pendingMu sync.Mutex

	newExchange func(verifier []byte) (srp.Exchange, error)

	sessionValidity time.Duration
	accountQuota    models.AccountQuota
	orgQuota        models.OrgQuota

	now func() time.Time
}

func New(p Params) *Controller {
	return &Controller{
		storage:         p.Storage,
		blobs:           p.Blobs,
		mailer:          p.Mailer,
		verifier:        p.Verification,
		billing:         p.Billing,
		logger:          p.Logger.With("module", "controller"),
		pending:         gocache.New(p.PendingAuthTTL, 2*p.PendingAuthTTL),
		newExchange:     func(v []byte) (srp.Exchange, error) { return srp.NewServer(v) },
		sessionValidity: p.SessionValidity,
		accountQuota:    p.AccountQuota,
		orgQuota:        p.OrgQuota,
		now:             time.Now,
	}
}

// Context carries the authenticated caller of one request. A nil Session
// means the request is anonymous; Device is set whenever the client
// announced one, authenticated or not.
type Context struct {
	Session *models.Session
	Account *models.Account
	Device  *models.DeviceInfo
}

func (a *Context) device() *models.DeviceInfo {
	if a == nil {
		return nil
	}
	return a.Device
}

// requireAuth returns the caller's account or INVALID_SESSION for anonymous
// requests.
func requireAuth(actx *Context) (*models.Account, error) {
	if actx == nil || actx.Session == nil || actx.Account == nil {
		return nil, common.ErrorInvalidSession
	}
	return actx.Account, nil
}

// checkRevision is the optimistic-concurrency guard applied to every mutable
// aggregate: the caller must submit the revision it read.
func checkRevision(current, submitted string) error {
	if current != submitted {
		return common.ErrorOutdatedRevision
	}
	return nil
}

// getOrg loads an org, translating absence into NOT_FOUND.
func (c *Controller) getOrg(ctx context.Context, id string) (*models.Org, error) {
	org := &models.Org{ID: id}
	if err := c.storage.Get(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// getAccount loads an account by id.
func (c *Controller) getAccount(ctx context.Context, id string) (*models.Account, error) {
	acc := &models.Account{ID: id}
	if err := c.storage.Get(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}
