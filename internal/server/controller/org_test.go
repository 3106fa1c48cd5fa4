package controller

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// orgFixture signs up an owner, an admin and a member and wires them into
// one org. Returns the stored org state after all membership changes.
type orgFixture struct {
	*fixture
	owner  *models.Account
	admin  *models.Account
	member *models.Account
	org    *models.Org
}

func newOrgFixture(t *testing.T) *orgFixture {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()

	owner := f.signup(t, "owner@example.com", "Owner", "ownerpass", testDevice("d-owner"))
	admin := f.signup(t, "admin@example.com", "Admin", "adminpass", testDevice("d-admin"))
	member := f.signup(t, "member@example.com", "Member", "memberpass", testDevice("d-member"))

	org, err := f.ctrl.CreateOrg(ctx, f.as(t, owner), &models.Org{Name: "Acme"})
	require.NoError(t, err)

	submitted := *org
	submitted.Members = append(append([]models.Member(nil), org.Members...),
		models.Member{AccountID: admin.ID, Email: admin.Email, Name: admin.Name, Role: models.RoleAdmin},
		models.Member{AccountID: member.ID, Email: member.Email, Name: member.Name, Role: models.RoleMember},
	)
	org, err = f.ctrl.UpdateOrg(ctx, f.as(t, owner), &submitted)
	require.NoError(t, err)

	return &orgFixture{fixture: f, owner: owner, admin: admin, member: member, org: org}
}

func (f *orgFixture) reload(t *testing.T) *models.Org {
	t.Helper()
	org := &models.Org{ID: f.org.ID}
	require.NoError(t, f.storage.Get(context.Background(), org))
	return org
}

func TestCreateOrg(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc := f.signup(t, "alice@example.com", "Alice", "correct horse", testDevice("d1"))

	org, err := f.ctrl.CreateOrg(ctx, f.as(t, acc), &models.Org{Name: "Acme", EncryptedData: []byte("blob")})
	require.NoError(t, err)

	assert.Equal(t, acc.ID, org.Owner)
	require.Len(t, org.Members, 1)
	assert.Equal(t, models.RoleOwner, org.Members[0].Role)

	fresh := &models.Account{ID: acc.ID}
	require.NoError(t, f.storage.Get(ctx, fresh))
	assert.Contains(t, fresh.Orgs, org.ID)
}

func TestCreateOrg_Quota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc := f.signup(t, "alice@example.com", "Alice", "correct horse", testDevice("d1"))

	// quota is 3 owned orgs: the third succeeds, the fourth fails
	for i := 0; i < 3; i++ {
		_, err := f.ctrl.CreateOrg(ctx, f.as(t, acc), &models.Org{Name: "Org"})
		require.NoError(t, err)
	}

	_, err := f.ctrl.CreateOrg(ctx, f.as(t, acc), &models.Org{Name: "One Too Many"})
	require.Error(t, err)
	var apiErr *common.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, common.CodeQuotaExceeded, apiErr.Code)
}

func TestGetOrg_NonMemberNotFound(t *testing.T) {
	f := newOrgFixture(t)
	ctx := context.Background()

	outsider := f.signup(t, "outsider@example.com", "Outsider", "pass", testDevice("d-x"))

	_, err := f.ctrl.GetOrg(ctx, f.as(t, outsider), f.org.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	got, err := f.ctrl.GetOrg(ctx, f.as(t, f.member), f.org.ID)
	require.NoError(t, err)
	assert.Equal(t, f.org.ID, got.ID)
}

func TestUpdateOrg_AdminMayRename(t *testing.T) {
	f := newOrgFixture(t)

	submitted := *f.org
	submitted.Name = "Acme Renamed"
	updated, err := f.ctrl.UpdateOrg(context.Background(), f.as(t, f.admin), &submitted)
	require.NoError(t, err)
	assert.Equal(t, "Acme Renamed", updated.Name)
	assert.NotEqual(t, f.org.Revision, updated.Revision)
}

func TestUpdateOrg_MemberDenied(t *testing.T) {
	f := newOrgFixture(t)

	submitted := *f.org
	submitted.Name = "Nope"
	_, err := f.ctrl.UpdateOrg(context.Background(), f.as(t, f.member), &submitted)
	assert.ErrorIs(t, err, common.ErrorInsufficientPermissions)
}

func TestUpdateOrg_RevisionGuard(t *testing.T) {
	f := newOrgFixture(t)

	submitted := *f.org
	submitted.Revision = "stale"
	_, err := f.ctrl.UpdateOrg(context.Background(), f.as(t, f.owner), &submitted)
	assert.ErrorIs(t, err, common.ErrorOutdatedRevision)
}

func TestUpdateOrg_MembershipChangeIsOwnerOnly(t *testing.T) {
	f := newOrgFixture(t)
	ctx := context.Background()

	extra := f.signup(t, "extra@example.com", "Extra", "pass", testDevice("d-e"))

	submitted := *f.org
	submitted.Members = append(append([]models.Member(nil), f.org.Members...),
		models.Member{AccountID: extra.ID, Email: extra.Email, Role: models.RoleMember})

	_, err := f.ctrl.UpdateOrg(ctx, f.as(t, f.admin), &submitted)
	assert.ErrorIs(t, err, common.ErrorInsufficientPermissions)

	// a role change alone is a membership change too
	submitted = *f.org
	submitted.Members = append([]models.Member(nil), f.org.Members...)
	for i := range submitted.Members {
		if submitted.Members[i].AccountID == f.member.ID {
			submitted.Members[i].Role = models.RoleAdmin
		}
	}
	_, err = f.ctrl.UpdateOrg(ctx, f.as(t, f.admin), &submitted)
	assert.ErrorIs(t, err, common.ErrorInsufficientPermissions)
}

func TestUpdateOrg_AdminMayAssignVaults(t *testing.T) {
	f := newOrgFixture(t)
	ctx := context.Background()

	vault, err := f.ctrl.CreateVault(ctx, f.as(t, f.owner), &models.Vault{Name: "Shared", Org: f.org.ID})
	require.NoError(t, err)

	org := f.reload(t)
	submitted := *org
	submitted.Members = append([]models.Member(nil), org.Members...)
	for i := range submitted.Members {
		if submitted.Members[i].AccountID == f.member.ID {
			submitted.Members[i].Vaults = []models.VaultAssignment{{ID: vault.ID}}
		}
	}

	_, err = f.ctrl.UpdateOrg(ctx, f.as(t, f.admin), &submitted)
	require.NoError(t, err)

	stored := f.reload(t)
	member := stored.Member(f.member.ID)
	require.NotNil(t, member)
	require.Len(t, member.Vaults, 1)
	assert.Equal(t, vault.ID, member.Vaults[0].ID)
}

func TestUpdateOrg_OwnerCannotBeRemovedOrDemoted(t *testing.T) {
	f := newOrgFixture(t)
	ctx := context.Background()

	submitted := *f.org
	submitted.Members = nil
	for _, m := range f.org.Members {
		if m.AccountID != f.owner.ID {
			submitted.Members = append(submitted.Members, m)
		}
	}
	_, err := f.ctrl.UpdateOrg(ctx, f.as(t, f.owner), &submitted)
	assert.ErrorIs(t, err, common.ErrorBadRequest)

	submitted = *f.org
	submitted.Members = append([]models.Member(nil), f.org.Members...)
	for i := range submitted.Members {
		if submitted.Members[i].AccountID == f.owner.ID {
			submitted.Members[i].Role = models.RoleMember
		}
	}
	_, err = f.ctrl.UpdateOrg(ctx, f.as(t, f.owner), &submitted)
	assert.ErrorIs(t, err, common.ErrorBadRequest)
}

func TestUpdateOrg_RemoveMemberUnlinksAccount(t *testing.T) {
	f := newOrgFixture(t)
	ctx := context.Background()

	submitted := *f.org
	submitted.Members = nil
	for _, m := range f.org.Members {
		if m.AccountID != f.member.ID {
			submitted.Members = append(submitted.Members, m)
		}
	}
	_, err := f.ctrl.UpdateOrg(ctx, f.as(t, f.owner), &submitted)
	require.NoError(t, err)

	fresh := &models.Account{ID: f.member.ID}
	require.NoError(t, f.storage.Get(ctx, fresh))
	assert.NotContains(t, fresh.Orgs, f.org.ID)
}

func TestUpdateOrg_AddMemberNotifies(t *testing.T) {
	f := newOrgFixture(t)

	// the admin and member added in the fixture were both notified
	assert.Len(t, f.mailer.SentTo("admin@example.com"), 1)
	assert.Len(t, f.mailer.SentTo("member@example.com"), 1)
	assert.Empty(t, f.mailer.SentTo("owner@example.com"))
}

func TestUpdateOrg_MemberQuota(t *testing.T) {
	f := newOrgFixture(t)
	ctx := context.Background()

	// org already has 3 members, the fixture quota cap
	extra := f.signup(t, "extra@example.com", "Extra", "pass", testDevice("d-e"))

	submitted := *f.org
	submitted.Members = append(append([]models.Member(nil), f.org.Members...),
		models.Member{AccountID: extra.ID, Email: extra.Email, Role: models.RoleMember})

	_, err := f.ctrl.UpdateOrg(ctx, f.as(t, f.owner), &submitted)
	require.Error(t, err)
	var apiErr *common.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, common.CodeQuotaExceeded, apiErr.Code)
}

func TestUpdateOrg_InviteForNewEmail(t *testing.T) {
	f := newOrgFixture(t)
	ctx := context.Background()

	submitted := *f.org
	submitted.Invites = []models.Invite{{Email: "newcomer@example.com", Purpose: "add_member"}}

	updated, err := f.ctrl.UpdateOrg(ctx, f.as(t, f.owner), &submitted)
	require.NoError(t, err)

	require.Len(t, updated.Invites, 1)
	inv := updated.Invites[0]
	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, f.org.ID, inv.OrgID)
	assert.Equal(t, f.owner.ID, inv.InvitedBy.AccountID)
	// the address has no account yet, so a signup token is embedded
	assert.NotEmpty(t, inv.Token)
	assert.False(t, inv.Accepted)

	require.Len(t, f.mailer.SentTo("newcomer@example.com"), 1)
}

func TestUpdateOrg_InviteForExistingEmailHasNoToken(t *testing.T) {
	f := newOrgFixture(t)
	ctx := context.Background()

	f.signup(t, "known@example.com", "Known", "pass", testDevice("d-k"))

	submitted := *f.org
	submitted.Invites = []models.Invite{{Email: "known@example.com", Purpose: "add_member"}}

	updated, err := f.ctrl.UpdateOrg(ctx, f.as(t, f.owner), &submitted)
	require.NoError(t, err)

	require.Len(t, updated.Invites, 1)
	assert.Empty(t, updated.Invites[0].Token)
	require.Len(t, f.mailer.SentTo("known@example.com"), 1)
}

func TestUpdateOrg_AdminCannotInvite(t *testing.T) {
	f := newOrgFixture(t)

	submitted := *f.org
	submitted.Invites = []models.Invite{{Email: "newcomer@example.com"}}

	_, err := f.ctrl.UpdateOrg(context.Background(), f.as(t, f.admin), &submitted)
	assert.ErrorIs(t, err, common.ErrorInsufficientPermissions)
}

func TestUpdateOrg_OwnerFieldsAreOwnerOnly(t *testing.T) {
	f := newOrgFixture(t)

	submitted := *f.org
	submitted.EncryptedData = []byte("rotated")
	_, err := f.ctrl.UpdateOrg(context.Background(), f.as(t, f.admin), &submitted)
	assert.ErrorIs(t, err, common.ErrorInsufficientPermissions)

	updated, err := f.ctrl.UpdateOrg(context.Background(), f.as(t, f.owner), &submitted)
	require.NoError(t, err)
	assert.Equal(t, []byte("rotated"), updated.EncryptedData)
}
