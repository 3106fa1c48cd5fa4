package controller

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dmitrijs2005/keyvault/internal/logging"
	"github.com/dmitrijs2005/keyvault/internal/server/blob"
	"github.com/dmitrijs2005/keyvault/internal/server/mail"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
	"github.com/dmitrijs2005/keyvault/internal/server/srp"
	"github.com/dmitrijs2005/keyvault/internal/server/storage"
	"github.com/dmitrijs2005/keyvault/internal/server/verification"
	"github.com/stretchr/testify/require"
)

var testSalt = []byte("0123456789abcdef")

type fixture struct {
	ctrl     *Controller
	storage  *storage.MemoryStorage
	blobs    *blob.MemoryStore
	mailer   *mail.MemorySender
	verifier *verification.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := storage.NewMemoryStorage()
	blobs := blob.NewMemoryStore()
	mailer := mail.NewMemorySender()
	verifier := verification.NewEngine(st, mailer, nil, []byte("test-secret"), time.Hour)
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctrl := New(Params{
		Storage:         st,
		Blobs:           blobs,
		Mailer:          mailer,
		Verification:    verifier,
		Logger:          logger,
		SessionValidity: time.Hour,
		PendingAuthTTL:  time.Minute,
		AccountQuota:    models.AccountQuota{Orgs: 3, Storage: 1000},
		OrgQuota:        models.OrgQuota{Members: 3, Groups: 2, Vaults: 3, Storage: 2000},
	})

	return &fixture{ctrl: ctrl, storage: st, blobs: blobs, mailer: mailer, verifier: verifier}
}

func testDevice(id string) *models.DeviceInfo {
	return &models.DeviceInfo{ID: id, Description: "unit test device", Platform: "test"}
}

// signup provisions an account end to end: verification token, auth record
// with a real verifier, account and main vault. The given device ends up
// trusted.
func (f *fixture) signup(t *testing.T, email, name, password string, device *models.DeviceInfo) *models.Account {
	t.Helper()
	ctx := context.Background()

	token, err := f.verifier.IssueToken(ctx, email, "signup")
	require.NoError(t, err)

	account := &models.Account{Email: email, Name: name, PublicKey: []byte(name + "-pub")}
	auth := &models.Auth{
		Email:    email,
		Verifier: srp.ComputeVerifier(email, password, testSalt),
	}

	created, err := f.ctrl.CreateAccount(ctx, &Context{Device: device}, account, auth, token)
	require.NoError(t, err)
	return created
}

// as builds an authenticated caller context with a fresh copy of the
// account, the way the transport layer would after Authenticate.
func (f *fixture) as(t *testing.T, acc *models.Account) *Context {
	t.Helper()

	fresh := &models.Account{ID: acc.ID}
	require.NoError(t, f.storage.Get(context.Background(), fresh))
	return &Context{
		Session: &models.Session{ID: "test-session-" + acc.ID, Account: acc.ID},
		Account: fresh,
	}
}

// login runs the real SRP handshake and returns the created session result.
func (f *fixture) login(t *testing.T, email, password string, device *models.DeviceInfo) *CreateSessionResult {
	t.Helper()
	ctx := context.Background()

	init, err := f.ctrl.InitAuth(ctx, &Context{Device: device}, email, "")
	require.NoError(t, err)

	client := srp.NewClient(email, password, testSalt)
	require.NoError(t, client.SetServerEphemeral(init.ServerEphemeral))
	proof, err := client.Proof()
	require.NoError(t, err)

	res, err := f.ctrl.CreateSession(ctx, &Context{Device: device}, init.Account, client.Ephemeral(), proof)
	require.NoError(t, err)
	require.True(t, client.CheckServerProof(res.ServerProof))
	return res
}
