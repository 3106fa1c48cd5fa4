package rpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dmitrijs2005/keyvault/internal/common"
	"github.com/dmitrijs2005/keyvault/internal/logging"
	"github.com/dmitrijs2005/keyvault/internal/server/controller"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
)

// Dispatcher routes one request envelope to its controller operation.
type Dispatcher struct {
	ctrl   *controller.Controller
	logger logging.Logger
}

func NewDispatcher(ctrl *controller.Controller, logger logging.Logger) *Dispatcher {
	return &Dispatcher{ctrl: ctrl, logger: logger.With("module", "rpc")}
}

// Dispatch authenticates the caller, runs the method and builds the
// response envelope. Typed errors pass through with their code; anything
// unanticipated is logged and degraded to an opaque SERVER_ERROR so
// internal detail never reaches a client.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	actx, err := d.authenticate(ctx, req)
	if err != nil {
		return errorResponse(ctx, d.logger, req.Method, err)
	}

	result, err := d.call(ctx, actx, req)
	if err != nil {
		return errorResponse(ctx, d.logger, req.Method, err)
	}
	return &Response{Result: result}
}

func (d *Dispatcher) authenticate(ctx context.Context, req *Request) (*controller.Context, error) {
	var sessionID string
	var signature []byte
	if req.Auth != nil {
		sessionID = req.Auth.Session
		signature = req.Auth.Signature
	}
	return d.ctrl.Authenticate(ctx, sessionID, signature, req.SignedPayload(), req.Device)
}

func errorResponse(ctx context.Context, logger logging.Logger, method string, err error) *Response {
	var apiErr *common.Error
	if errors.As(err, &apiErr) {
		return &Response{Error: &Error{Code: apiErr.Code, Message: apiErr.Message}}
	}
	logger.Error(ctx, "unhandled error", "method", method, "error", err)
	return &Response{Error: &Error{Code: common.CodeServerError, Message: "internal server error"}}
}

// decode unmarshals positional params into the given targets. Wrong arity
// or a value of the wrong shape is a BAD_REQUEST.
func decode(params []json.RawMessage, targets ...any) error {
	if len(params) != len(targets) {
		return common.NewError(common.CodeBadRequest, "expected %d parameters, got %d", len(targets), len(params))
	}
	for i, p := range params {
		if err := json.Unmarshal(p, targets[i]); err != nil {
			return common.NewError(common.CodeBadRequest, "parameter %d: %s", i, err)
		}
	}
	return nil
}

// call is the closed method table: every supported method has its own case
// with parameter decoding colocated. Unknown names are INVALID_REQUEST.
func (d *Dispatcher) call(ctx context.Context, actx *controller.Context, req *Request) (any, error) {
	switch req.Method {

	case "requestEmailVerification":
		var email, purpose string
		if err := decode(req.Params, &email, &purpose); err != nil {
			return nil, err
		}
		return nil, d.ctrl.RequestEmailVerification(ctx, actx, email, purpose)

	case "completeEmailVerification":
		var email, code string
		if err := decode(req.Params, &email, &code); err != nil {
			return nil, err
		}
		return d.ctrl.CompleteEmailVerification(ctx, actx, email, code)

	case "initAuth":
		// the verification token is optional for trusted devices
		var email, token string
		switch len(req.Params) {
		case 1:
			if err := decode(req.Params, &email); err != nil {
				return nil, err
			}
		default:
			if err := decode(req.Params, &email, &token); err != nil {
				return nil, err
			}
		}
		return d.ctrl.InitAuth(ctx, actx, email, token)

	case "updateAuth":
		var auth models.Auth
		if err := decode(req.Params, &auth); err != nil {
			return nil, err
		}
		return nil, d.ctrl.UpdateAuth(ctx, actx, &auth)

	case "createSession":
		var account string
		var clientEphemeral, clientProof []byte
		if err := decode(req.Params, &account, &clientEphemeral, &clientProof); err != nil {
			return nil, err
		}
		return d.ctrl.CreateSession(ctx, actx, account, clientEphemeral, clientProof)

	case "revokeSession":
		var id string
		if err := decode(req.Params, &id); err != nil {
			return nil, err
		}
		return nil, d.ctrl.RevokeSession(ctx, actx, id)

	case "getAccount":
		if err := decode(req.Params); err != nil {
			return nil, err
		}
		return d.ctrl.GetAccount(ctx, actx)

	case "createAccount":
		var account models.Account
		var auth models.Auth
		var token string
		if err := decode(req.Params, &account, &auth, &token); err != nil {
			return nil, err
		}
		return d.ctrl.CreateAccount(ctx, actx, &account, &auth, token)

	case "updateAccount":
		var account models.Account
		if err := decode(req.Params, &account); err != nil {
			return nil, err
		}
		return d.ctrl.UpdateAccount(ctx, actx, &account)

	case "recoverAccount":
		var account models.Account
		var auth models.Auth
		var token string
		if err := decode(req.Params, &account, &auth, &token); err != nil {
			return nil, err
		}
		return d.ctrl.RecoverAccount(ctx, actx, &account, &auth, token)

	case "createOrg":
		var org models.Org
		if err := decode(req.Params, &org); err != nil {
			return nil, err
		}
		return d.ctrl.CreateOrg(ctx, actx, &org)

	case "getOrg":
		var id string
		if err := decode(req.Params, &id); err != nil {
			return nil, err
		}
		return d.ctrl.GetOrg(ctx, actx, id)

	case "updateOrg":
		var org models.Org
		if err := decode(req.Params, &org); err != nil {
			return nil, err
		}
		return d.ctrl.UpdateOrg(ctx, actx, &org)

	case "getVault":
		var id string
		if err := decode(req.Params, &id); err != nil {
			return nil, err
		}
		return d.ctrl.GetVault(ctx, actx, id)

	case "createVault":
		var vault models.Vault
		if err := decode(req.Params, &vault); err != nil {
			return nil, err
		}
		return d.ctrl.CreateVault(ctx, actx, &vault)

	case "updateVault":
		var vault models.Vault
		if err := decode(req.Params, &vault); err != nil {
			return nil, err
		}
		return d.ctrl.UpdateVault(ctx, actx, &vault)

	case "deleteVault":
		var id string
		if err := decode(req.Params, &id); err != nil {
			return nil, err
		}
		return nil, d.ctrl.DeleteVault(ctx, actx, id)

	case "getInvite":
		var orgID, inviteID string
		if err := decode(req.Params, &orgID, &inviteID); err != nil {
			return nil, err
		}
		return d.ctrl.GetInvite(ctx, actx, orgID, inviteID)

	case "acceptInvite":
		var orgID, inviteID string
		if err := decode(req.Params, &orgID, &inviteID); err != nil {
			return nil, err
		}
		return d.ctrl.AcceptInvite(ctx, actx, orgID, inviteID)

	case "createAttachment":
		var vaultID string
		var data []byte
		if err := decode(req.Params, &vaultID, &data); err != nil {
			return nil, err
		}
		return d.ctrl.CreateAttachment(ctx, actx, vaultID, data)

	case "getAttachment":
		var vaultID, id string
		if err := decode(req.Params, &vaultID, &id); err != nil {
			return nil, err
		}
		return d.ctrl.GetAttachment(ctx, actx, vaultID, id)

	case "deleteAttachment":
		var vaultID, id string
		if err := decode(req.Params, &vaultID, &id); err != nil {
			return nil, err
		}
		return nil, d.ctrl.DeleteAttachment(ctx, actx, vaultID, id)

	case "updateBilling":
		var params controller.BillingParams
		if err := decode(req.Params, &params); err != nil {
			return nil, err
		}
		return d.ctrl.UpdateBilling(ctx, actx, &params)

	case "getPlans":
		if err := decode(req.Params); err != nil {
			return nil, err
		}
		return d.ctrl.GetPlans(ctx, actx)

	default:
		return nil, common.NewError(common.CodeInvalidRequest, "unknown method %q", req.Method)
	}
}
