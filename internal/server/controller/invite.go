package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/server/mail"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
)

// GetInvite returns an invite to its addressee or to the org owner.
// Anyone else gets NOT_FOUND.
func (c *Controller) GetInvite(ctx context.Context, actx *Context, orgID, inviteID string) (*models.Invite, error) {
	acc, err := requireAuth(actx)
	if err != nil {
		return nil, err
	}

	org, err := c.getOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	inv := org.Invite(inviteID)
	if inv == nil {
		return nil, common.ErrorNotFound
	}
	if org.Owner != acc.ID && !strings.EqualFold(inv.Email, acc.Email) {
		return nil, common.ErrorNotFound
	}
	return inv, nil
}

// AcceptInvite marks the invite accepted on behalf of its addressee and
// notifies the inviter. Accepting again is a no-op for the inviter's inbox.
func (c *Controller) AcceptInvite(ctx context.Context, actx *Context, orgID, inviteID string) (*models.Invite, error) {
	acc, err := requireAuth(actx)
	if err != nil {
		return nil, err
	}

	org, err := c.getOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	inv := org.Invite(inviteID)
	if inv == nil {
		return nil, common.ErrorNotFound
	}
	if !strings.EqualFold(inv.Email, acc.Email) {
		return nil, common.ErrorNotFound
	}

	first := !inv.Accepted
	inv.Accepted = true
	org.Revision = models.NewRevision()
	org.Updated = c.now()

	if err := c.storage.SaveAll(ctx, org); err != nil {
		return nil, err
	}

	if first && inv.InvitedBy.Email != "" {
		msg := mail.Message{
			Subject: fmt.Sprintf("%s accepted your invitation", acc.Email),
			Body:    fmt.Sprintf("%s accepted the invitation to join %q. You can now add them as a member.", acc.Email, org.Name),
		}
		if err := c.mailer.Send(ctx, inv.InvitedBy.Email, msg); err != nil {
			return nil, err
		}
	}
	return inv, nil
}
