package models

import (
	"encoding/json"
	"time"
)

// Role is a member's privilege level inside an org, ordered from most to
// least privileged. Suspended members keep their entry (and wrapped keys can
// be re-established later) but hold no capabilities.
type Role int

const (
	RoleOwner Role = iota
	RoleAdmin
	RoleMember
	RoleSuspended
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	case RoleMember:
		return "member"
	case RoleSuspended:
		return "suspended"
	}
	return "unknown"
}

// OrgQuota limits org contents. -1 means unlimited.
type OrgQuota struct {
	Members int   `json:"members"`
	Groups  int   `json:"groups"`
	Vaults  int   `json:"vaults"`
	Storage int64 `json:"storage"`
}

// VaultInfo is the name index entry an org keeps for each of its vaults.
type VaultInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VaultAssignment grants access to one vault, optionally read-only.
type VaultAssignment struct {
	ID       string `json:"id"`
	ReadOnly bool   `json:"readonly"`
}

// Member is one account's membership entry. Email and display name are
// denormalized from the account so org views need no extra lookups.
type Member struct {
	AccountID string            `json:"account"`
	Email     string            `json:"email"`
	Name      string            `json:"name"`
	PublicKey []byte            `json:"publicKey,omitempty"`
	Role      Role              `json:"role"`
	Vaults    []VaultAssignment `json:"vaults"`
	Groups    []string          `json:"groups,omitempty"`
	Updated   time.Time         `json:"updated"`
}

// Group is a named set of vault assignments that members can be attached to.
type Group struct {
	Name   string            `json:"name"`
	Vaults []VaultAssignment `json:"vaults"`
}

// InviteRef identifies who issued an invite.
type InviteRef struct {
	AccountID string `json:"account"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Invite is a pending membership offer. Invites live inside their org; the
// org's invite list is the source of truth. For addressees without an
// existing auth record the invite carries a pre-issued email-verification
// token so signup needs no separate verification round-trip.
type Invite struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org"`
	OrgName   string    `json:"orgName,omitempty"`
	Email     string    `json:"email"`
	Purpose   string    `json:"purpose,omitempty"`
	Token     string    `json:"token,omitempty"`
	Accepted  bool      `json:"accepted"`
	InvitedBy InviteRef `json:"invitedBy"`
	Created   time.Time `json:"created"`
}

// Org is the shared-access boundary: members, groups, vaults, invites and
// the cryptographic accessor list used for key wrapping.
type Org struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Owner            string          `json:"owner"`
	PublicKey        []byte          `json:"publicKey,omitempty"`
	KeyParams        json.RawMessage `json:"keyParams,omitempty"`
	EncryptionParams json.RawMessage `json:"encryptionParams,omitempty"`
	SigningParams    json.RawMessage `json:"signingParams,omitempty"`
	EncryptedData    []byte          `json:"encryptedData,omitempty"`
	Accessors        []Accessor      `json:"accessors,omitempty"`
	Members          []Member        `json:"members"`
	Groups           []Group         `json:"groups"`
	Vaults           []VaultInfo     `json:"vaults"`
	Invites          []Invite        `json:"invites"`
	Quota            OrgQuota        `json:"quota"`
	Revision         string          `json:"revision"`
	Created          time.Time       `json:"created"`
	Updated          time.Time       `json:"updated"`
}

func (o *Org) Kind() string     { return KindOrg }
func (o *Org) ObjectID() string { return o.ID }

// Member returns the membership entry for the account, or nil.
func (o *Org) Member(accountID string) *Member {
	for i := range o.Members {
		if o.Members[i].AccountID == accountID {
			return &o.Members[i]
		}
	}
	return nil
}

// Role returns the account's role and whether it is a member at all.
// The org owner is always RoleOwner regardless of its member entry.
func (o *Org) Role(accountID string) (Role, bool) {
	if accountID == o.Owner {
		return RoleOwner, true
	}
	if m := o.Member(accountID); m != nil {
		return m.Role, true
	}
	return RoleSuspended, false
}

// Group returns the group with the given name, or nil.
func (o *Org) Group(name string) *Group {
	for i := range o.Groups {
		if o.Groups[i].Name == name {
			return &o.Groups[i]
		}
	}
	return nil
}

// Invite returns the invite with the given id, or nil.
func (o *Org) Invite(id string) *Invite {
	for i := range o.Invites {
		if o.Invites[i].ID == id {
			return &o.Invites[i]
		}
	}
	return nil
}

// RemoveVault drops the vault from the org's index and from every member and
// group assignment list that held it.
func (o *Org) RemoveVault(vaultID string) {
	vaults := o.Vaults[:0]
	for _, v := range o.Vaults {
		if v.ID != vaultID {
			vaults = append(vaults, v)
		}
	}
	o.Vaults = vaults

	for i := range o.Members {
		o.Members[i].Vaults = removeAssignment(o.Members[i].Vaults, vaultID)
	}
	for i := range o.Groups {
		o.Groups[i].Vaults = removeAssignment(o.Groups[i].Vaults, vaultID)
	}
}

func removeAssignment(list []VaultAssignment, vaultID string) []VaultAssignment {
	filtered := list[:0]
	for _, a := range list {
		if a.ID != vaultID {
			filtered = append(filtered, a)
		}
	}
	return filtered
}
