package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthID_CaseInsensitive(t *testing.T) {
	assert.Equal(t, AuthID("Alice@Example.COM"), AuthID("alice@example.com"))
	assert.Equal(t, AuthID("  alice@example.com  "), AuthID("alice@example.com"))
	assert.NotEqual(t, AuthID("alice@example.com"), AuthID("bob@example.com"))
}

func TestAuth_TrustDevice(t *testing.T) {
	a := &Auth{}
	d := &DeviceInfo{ID: "d1"}

	assert.False(t, a.IsTrusted(d))
	assert.False(t, a.IsTrusted(nil))

	a.TrustDevice(d)
	assert.True(t, a.IsTrusted(d))

	// no duplicates
	a.TrustDevice(d)
	assert.Len(t, a.TrustedDevices, 1)

	a.TrustDevice(nil)
	assert.Len(t, a.TrustedDevices, 1)
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	s := &Session{Expires: now.Add(time.Hour)}

	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(now.Add(2*time.Hour)))

	// a session with no expiry never expires
	assert.False(t, (&Session{}).Expired(now))
}

func TestSession_Stripped(t *testing.T) {
	s := &Session{ID: "s1", Key: []byte("secret")}
	c := s.Stripped()

	assert.Nil(t, c.Key)
	assert.Equal(t, "s1", c.ID)
	// the original keeps its key
	assert.NotNil(t, s.Key)
}

func TestAccount_Sessions(t *testing.T) {
	a := &Account{}

	a.UpsertSession(SessionInfo{ID: "s1"})
	a.UpsertSession(SessionInfo{ID: "s2"})
	require.Len(t, a.Sessions, 2)

	// upsert replaces in place
	a.UpsertSession(SessionInfo{ID: "s1", LastUsed: time.Now()})
	require.Len(t, a.Sessions, 2)

	a.RemoveSession("s1")
	require.Len(t, a.Sessions, 1)
	assert.Equal(t, "s2", a.Sessions[0].ID)
}

func TestAccount_Orgs(t *testing.T) {
	a := &Account{}

	a.AddOrg("o1")
	a.AddOrg("o1")
	assert.Equal(t, []string{"o1"}, a.Orgs)

	a.RemoveOrg("o1")
	assert.Empty(t, a.Orgs)
}

func TestOrg_Role(t *testing.T) {
	org := &Org{
		Owner: "owner-id",
		Members: []Member{
			{AccountID: "owner-id", Role: RoleMember}, // stored role is ignored for the owner
			{AccountID: "admin-id", Role: RoleAdmin},
			{AccountID: "member-id", Role: RoleMember},
		},
	}

	role, ok := org.Role("owner-id")
	require.True(t, ok)
	assert.Equal(t, RoleOwner, role)

	role, ok = org.Role("admin-id")
	require.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	_, ok = org.Role("stranger")
	assert.False(t, ok)
}

func TestOrg_RemoveVault_Cascades(t *testing.T) {
	org := &Org{
		Vaults: []VaultInfo{{ID: "v1"}, {ID: "v2"}},
		Members: []Member{{
			AccountID: "m1",
			Vaults:    []VaultAssignment{{ID: "v1"}, {ID: "v2", ReadOnly: true}},
		}},
		Groups: []Group{{
			Name:   "eng",
			Vaults: []VaultAssignment{{ID: "v1"}},
		}},
	}

	org.RemoveVault("v1")

	require.Len(t, org.Vaults, 1)
	assert.Equal(t, "v2", org.Vaults[0].ID)
	require.Len(t, org.Members[0].Vaults, 1)
	assert.Equal(t, "v2", org.Members[0].Vaults[0].ID)
	assert.Empty(t, org.Groups[0].Vaults)
}

func TestVault_Validate(t *testing.T) {
	assert.True(t, (&Vault{ID: "v", Owner: "a"}).Validate())
	assert.True(t, (&Vault{ID: "v", Org: "o"}).Validate())
	assert.False(t, (&Vault{ID: "v"}).Validate())
	assert.False(t, (&Vault{ID: "v", Owner: "a", Org: "o"}).Validate())
}

func TestVault_Attachments(t *testing.T) {
	v := &Vault{}

	v.AddAttachment("a1")
	v.AddAttachment("a1")
	assert.Equal(t, []string{"a1"}, v.Attachments)

	v.RemoveAttachment("a1")
	assert.Empty(t, v.Attachments)
}

func TestEmailVerification_ObjectID(t *testing.T) {
	v := &EmailVerification{Email: "Alice@Example.COM"}
	assert.Equal(t, "alice@example.com", v.ObjectID())
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "owner", RoleOwner.String())
	assert.Equal(t, "suspended", RoleSuspended.String())
}
