package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/server/mail"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
	"github.com/dmitrijs2005/keyvault/internal/server/storage"
)

// CreateOrg creates an organization with the caller as owner, subject to
// the account's org-count quota.
func (c *Controller) CreateOrg(ctx context.Context, actx *Context, submitted *models.Org) (*models.Org, error) {
	acc, err := requireAuth(actx)
	if err != nil {
		return nil, err
	}

	if err := c.checkOrgCountQuota(ctx, acc); err != nil {
		return nil, err
	}

	now := c.now()
	org := &models.Org{
		ID:               models.NewID(),
		Name:             submitted.Name,
		Owner:            acc.ID,
		PublicKey:        submitted.PublicKey,
		KeyParams:        submitted.KeyParams,
		EncryptionParams: submitted.EncryptionParams,
		SigningParams:    submitted.SigningParams,
		EncryptedData:    submitted.EncryptedData,
		Accessors:        submitted.Accessors,
		Quota:            c.orgQuota,
		Revision:         models.NewRevision(),
		Created:          now,
		Updated:          now,
	}
	org.Members = []models.Member{{
		AccountID: acc.ID,
		Email:     acc.Email,
		Name:      acc.Name,
		PublicKey: acc.PublicKey,
		Role:      models.RoleOwner,
		Updated:   now,
	}}

	acc.AddOrg(org.ID)
	acc.Revision = models.NewRevision()
	acc.Updated = now

	if err := c.storage.SaveAll(ctx, org, acc); err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "org created", "org", org.ID, "owner", acc.ID)
	return org, nil
}

// GetOrg returns the org to its members. Everyone else gets NOT_FOUND, so
// org existence is never disclosed to outsiders.
func (c *Controller) GetOrg(ctx context.Context, actx *Context, id string) (*models.Org, error) {
	acc, err := requireAuth(actx)
	if err != nil {
		return nil, err
	}

	org, err := c.getOrg(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, isMember := org.Role(acc.ID); !isMember {
		return nil, common.ErrorNotFound
	}
	return org, nil
}

// orgDiff is the membership delta between the stored org and a submitted
// update, computed against the previous state for authorization: any
// non-empty diff is owner-only, whatever else the update also touches.
type orgDiff struct {
	addedMembers   []models.Member
	removedMembers []models.Member
	roleChanges    []models.Member
	addedInvites   []models.Invite
}

func (d *orgDiff) empty() bool {
	return len(d.addedMembers) == 0 &&
		len(d.removedMembers) == 0 &&
		len(d.roleChanges) == 0 &&
		len(d.addedInvites) == 0
}

func membershipDiff(old, new *models.Org) orgDiff {
	var d orgDiff

	for _, m := range new.Members {
		prev := old.Member(m.AccountID)
		switch {
		case prev == nil:
			d.addedMembers = append(d.addedMembers, m)
		case prev.Role != m.Role:
			d.roleChanges = append(d.roleChanges, m)
		}
	}
	for _, m := range old.Members {
		if findMember(new.Members, m.AccountID) == nil {
			d.removedMembers = append(d.removedMembers, m)
		}
	}
	for _, inv := range new.Invites {
		if inv.ID == "" || old.Invite(inv.ID) == nil {
			d.addedInvites = append(d.addedInvites, inv)
		}
	}
	return d
}

func findMember(members []models.Member, accountID string) *models.Member {
	for i := range members {
		if members[i].AccountID == accountID {
			return &members[i]
		}
	}
	return nil
}

// ownerFieldsChanged reports whether the update touches the cryptographic
// fields only the owner may rotate.
func ownerFieldsChanged(old, new *models.Org) bool {
	return !bytes.Equal(old.PublicKey, new.PublicKey) ||
		!bytes.Equal(old.KeyParams, new.KeyParams) ||
		!bytes.Equal(old.EncryptionParams, new.EncryptionParams) ||
		!bytes.Equal(old.SigningParams, new.SigningParams) ||
		!bytes.Equal(old.EncryptedData, new.EncryptedData) ||
		!reflect.DeepEqual(old.Accessors, new.Accessors)
}

// UpdateOrg applies an org update under the revision guard and the
// field-ownership rules: admins may change name, groups and vault
// assignments; every membership change (member added or removed, role
// changed, invite created) and every cryptographic field is owner-only.
func (c *Controller) UpdateOrg(ctx context.Context, actx *Context, submitted *models.Org) (*models.Org, error) {
	acc, err := requireAuth(actx)
	if err != nil {
		return nil, err
	}

	org, err := c.getOrg(ctx, submitted.ID)
	if err != nil {
		return nil, err
	}

	role, isMember := org.Role(acc.ID)
	if !isMember {
		return nil, common.ErrorNotFound
	}
	if role != models.RoleOwner && role != models.RoleAdmin {
		return nil, common.ErrorInsufficientPermissions
	}

	if err := checkRevision(org.Revision, submitted.Revision); err != nil {
		return nil, err
	}

	diff := membershipDiff(org, submitted)
	if !diff.empty() && role != models.RoleOwner {
		return nil, common.ErrorInsufficientPermissions
	}
	if ownerFieldsChanged(org, submitted) && role != models.RoleOwner {
		return nil, common.ErrorInsufficientPermissions
	}

	for _, m := range diff.removedMembers {
		if m.AccountID == org.Owner {
			return nil, common.NewError(common.CodeBadRequest, "organization owner cannot be removed")
		}
	}
	for _, m := range diff.roleChanges {
		if m.AccountID == org.Owner {
			return nil, common.NewError(common.CodeBadRequest, "organization owner role cannot be changed")
		}
	}

	// quota is checked before any side effect (mail, account linking)
	prospective := &models.Org{Members: submitted.Members, Groups: submitted.Groups, Quota: org.Quota}
	if err := checkOrgContentQuota(prospective); err != nil {
		return nil, err
	}

	now := c.now()
	records := []storage.Object{org}

	// unlink removed members from their accounts
	for _, m := range diff.removedMembers {
		member, err := c.getAccount(ctx, m.AccountID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		member.RemoveOrg(org.ID)
		member.Revision = models.NewRevision()
		member.Updated = now
		records = append(records, member)
	}

	// link added members and notify them, unless the caller added themself
	for _, m := range diff.addedMembers {
		member, err := c.getAccount(ctx, m.AccountID)
		if err != nil {
			return nil, err
		}
		member.AddOrg(org.ID)
		member.Revision = models.NewRevision()
		member.Updated = now
		records = append(records, member)

		if m.AccountID != acc.ID {
			msg := mail.Message{
				Subject: fmt.Sprintf("You have been added to %q", submitted.Name),
				Body:    fmt.Sprintf("%s added you to the organization %q.", acc.Name, submitted.Name),
			}
			if err := c.mailer.Send(ctx, member.Email, msg); err != nil {
				return nil, err
			}
		}
	}

	// admin-writable fields
	org.Name = submitted.Name
	org.Members = submitted.Members
	org.Groups = submitted.Groups
	for i := range org.Vaults {
		for _, v := range submitted.Vaults {
			if v.ID == org.Vaults[i].ID {
				org.Vaults[i].Name = v.Name
			}
		}
	}

	// owner-only fields
	if role == models.RoleOwner {
		org.PublicKey = submitted.PublicKey
		org.KeyParams = submitted.KeyParams
		org.EncryptionParams = submitted.EncryptionParams
		org.SigningParams = submitted.SigningParams
		org.EncryptedData = submitted.EncryptedData
		org.Accessors = submitted.Accessors
	}

	// invites: carry surviving ones over from the stored org, process added
	invites := make([]models.Invite, 0, len(submitted.Invites))
	for _, inv := range submitted.Invites {
		if inv.ID != "" {
			if existing := org.Invite(inv.ID); existing != nil {
				invites = append(invites, *existing)
				continue
			}
		}
		created, err := c.issueInvite(ctx, acc, org, inv, now)
		if err != nil {
			return nil, err
		}
		invites = append(invites, *created)
	}
	org.Invites = invites

	org.Revision = models.NewRevision()
	org.Updated = now

	if err := c.storage.SaveAll(ctx, records...); err != nil {
		return nil, err
	}
	return org, nil
}

// issueInvite finalizes a newly added invite. For an address with no
// existing auth record a verification token is pre-issued and embedded, so
// a brand-new user can sign up straight from the invite link.
func (c *Controller) issueInvite(ctx context.Context, inviter *models.Account, org *models.Org, inv models.Invite, now time.Time) (*models.Invite, error) {
	inv.ID = models.NewID()
	inv.OrgID = org.ID
	inv.OrgName = org.Name
	inv.Accepted = false
	inv.InvitedBy = models.InviteRef{AccountID: inviter.ID, Email: inviter.Email, Name: inviter.Name}
	inv.Created = now

	auth := &models.Auth{ID: models.AuthID(inv.Email)}
	err := c.storage.Get(ctx, auth)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		token, err := c.verifier.IssueToken(ctx, inv.Email, "org_invite")
		if err != nil {
			return nil, err
		}
		inv.Token = token
	case err != nil:
		return nil, err
	}

	body := fmt.Sprintf("%s invited you to join the organization %q.\n\nInvite id: %s/%s", inviter.Name, org.Name, org.ID, inv.ID)
	if inv.Token != "" {
		body += "\nSignup token: " + inv.Token
	}
	msg := mail.Message{
		Subject: fmt.Sprintf("Invitation to join %q", org.Name),
		Body:    body,
	}
	if err := c.mailer.Send(ctx, inv.Email, msg); err != nil {
		return nil, err
	}

	return &inv, nil
}
