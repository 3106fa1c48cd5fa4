package controller

import (
	"context"
	"sync"
	"testing"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
	"github.com/dmitrijs2005/keyvault/internal/server/srp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAuth_UntrustedDeviceRequiresVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.signup(t, "alice@example.com", "Alice", "correct horse", testDevice("d1"))

	// a different device gets the same refusal whether or not the account
	// exists, so callers cannot probe for registered emails
	_, err := f.ctrl.InitAuth(ctx, &Context{Device: testDevice("d2")}, "alice@example.com", "")
	assert.ErrorIs(t, err, common.ErrorEmailVerificationRequired)

	_, err = f.ctrl.InitAuth(ctx, &Context{Device: testDevice("d2")}, "nobody@example.com", "")
	assert.ErrorIs(t, err, common.ErrorEmailVerificationRequired)
}

func TestInitAuth_VerifiedUnknownEmailIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.verifier.IssueToken(ctx, "nobody@example.com", "login")
	require.NoError(t, err)

	_, err = f.ctrl.InitAuth(ctx, &Context{Device: testDevice("d1")}, "nobody@example.com", token)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestInitAuth_TrustedDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc := f.signup(t, "alice@example.com", "Alice", "correct horse", testDevice("d1"))

	res, err := f.ctrl.InitAuth(ctx, &Context{Device: testDevice("d1")}, "alice@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, res.Account)
	assert.NotEmpty(t, res.ServerEphemeral)
	require.Len(t, res.TrustedDevices, 1)
	assert.Equal(t, "d1", res.TrustedDevices[0].ID)
}

func TestLoginFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc := f.signup(t, "alice@example.com", "Alice", "correct horse", testDevice("d1"))
	res := f.login(t, "alice@example.com", "correct horse", testDevice("d1"))

	// the returned session must not carry the key
	assert.Nil(t, res.Session.Key)
	assert.Equal(t, acc.ID, res.Session.Account)

	// but the stored record does, and the account tracks the session
	stored := &models.Session{ID: res.Session.ID}
	require.NoError(t, f.storage.Get(ctx, stored))
	assert.NotEmpty(t, stored.Key)

	fresh := &models.Account{ID: acc.ID}
	require.NoError(t, f.storage.Get(ctx, fresh))
	require.Len(t, fresh.Sessions, 1)
	assert.Equal(t, res.Session.ID, fresh.Sessions[0].ID)
}

func TestLogin_TrustsNewDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.signup(t, "alice@example.com", "Alice", "correct horse", testDevice("d1"))

	// second device needs email verification to start the handshake
	token, err := f.verifier.IssueToken(ctx, "alice@example.com", "login")
	require.NoError(t, err)
	init, err := f.ctrl.InitAuth(ctx, &Context{Device: testDevice("d2")}, "alice@example.com", token)
	require.NoError(t, err)

	client := srp.NewClient("alice@example.com", "correct horse", testSalt)
	require.NoError(t, client.SetServerEphemeral(init.ServerEphemeral))
	proof, err := client.Proof()
	require.NoError(t, err)
	_, err = f.ctrl.CreateSession(ctx, &Context{Device: testDevice("d2")}, init.Account, client.Ephemeral(), proof)
	require.NoError(t, err)

	// after a successful login the device is trusted and logs in directly
	_, err = f.ctrl.InitAuth(ctx, &Context{Device: testDevice("d2")}, "alice@example.com", "")
	assert.NoError(t, err)
}

func TestCreateSession_WrongPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.signup(t, "alice@example.com", "Alice", "correct horse", testDevice("d1"))

	init, err := f.ctrl.InitAuth(ctx, &Context{Device: testDevice("d1")}, "alice@example.com", "")
	require.NoError(t, err)

	client := srp.NewClient("alice@example.com", "wrong horse", testSalt)
	require.NoError(t, client.SetServerEphemeral(init.ServerEphemeral))
	proof, err := client.Proof()
	require.NoError(t, err)

	_, err = f.ctrl.CreateSession(ctx, &Context{Device: testDevice("d1")}, init.Account, client.Ephemeral(), proof)
	assert.ErrorIs(t, err, common.ErrorInvalidCredentials)
}

func TestCreateSession_WithoutInitAuth(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.CreateSession(context.Background(), &Context{}, "no-such-negotiation", []byte{1}, []byte{2})
	assert.ErrorIs(t, err, common.ErrorInvalidCredentials)
}

func TestCreateSession_ConsumesNegotiation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.signup(t, "alice@example.com", "Alice", "correct horse", testDevice("d1"))

	init, err := f.ctrl.InitAuth(ctx, &Context{Device: testDevice("d1")}, "alice@example.com", "")
	require.NoError(t, err)

	client := srp.NewClient("alice@example.com", "correct horse", testSalt)
	require.NoError(t, client.SetServerEphemeral(init.ServerEphemeral))
	proof, err := client.Proof()
	require.NoError(t, err)

	_, err = f.ctrl.CreateSession(ctx, &Context{Device: testDevice("d1")}, init.Account, client.Ephemeral(), proof)
	require.NoError(t, err)

	// replaying the same proof must not mint a second session
	_, err = f.ctrl.CreateSession(ctx, &Context{Device: testDevice("d1")}, init.Account, client.Ephemeral(), proof)
	assert.ErrorIs(t, err, common.ErrorInvalidCredentials)
}

func TestCreateSession_ConcurrentAttemptsOwnExclusiveNegotiation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.signup(t, "alice@example.com", "Alice", "correct horse", testDevice("d1"))

	init, err := f.ctrl.InitAuth(ctx, &Context{Device: testDevice("d1")}, "alice@example.com", "")
	require.NoError(t, err)

	client := srp.NewClient("alice@example.com", "correct horse", testSalt)
	require.NoError(t, client.SetServerEphemeral(init.ServerEphemeral))
	proof, err := client.Proof()
	require.NoError(t, err)

	// all callers race for the single pending exchange; exactly one may
	// win it, everyone else must be turned away without touching its state
	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ctrl.CreateSession(ctx, &Context{Device: testDevice("d1")}, init.Account, client.Ephemeral(), proof)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, common.ErrorInvalidCredentials)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestUpdateAuth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc := f.signup(t, "alice@example.com", "Alice", "correct horse", testDevice("d1"))

	newVerifier := srp.ComputeVerifier("alice@example.com", "new passphrase", testSalt)
	err := f.ctrl.UpdateAuth(ctx, f.as(t, acc), &models.Auth{Email: "Alice@Example.com", Verifier: newVerifier})
	require.NoError(t, err)

	stored := &models.Auth{ID: models.AuthID("alice@example.com")}
	require.NoError(t, f.storage.Get(ctx, stored))
	assert.Equal(t, newVerifier, stored.Verifier)
	// trusted devices survive a credential rotation
	require.Len(t, stored.TrustedDevices, 1)
	assert.Equal(t, "d1", stored.TrustedDevices[0].ID)
}

func TestUpdateAuth_OtherEmailDenied(t *testing.T) {
	f := newFixture(t)

	acc := f.signup(t, "alice@example.com", "Alice", "correct horse", testDevice("d1"))
	f.signup(t, "bob@example.com", "Bob", "hunter2", testDevice("d2"))

	err := f.ctrl.UpdateAuth(context.Background(), f.as(t, acc), &models.Auth{Email: "bob@example.com"})
	assert.ErrorIs(t, err, common.ErrorInsufficientPermissions)
}
