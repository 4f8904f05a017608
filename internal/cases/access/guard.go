// Package access is the single authorization point for case reads and
// mutations. Visibility is checked before capability: a case outside the
// actor's scope is reported as not found, never as forbidden, so callers
// cannot discover other evaluators' cases.
package access

import (
	"juntas/internal/cases/models"
	"juntas/pkg/domain"
	dErrors "juntas/pkg/domain-errors"
	"juntas/pkg/requestcontext"
)

// Action is a capability checked against the role matrix.
type Action string

const (
	ActionView        Action = "view"
	ActionCreate      Action = "create"
	ActionEdit        Action = "edit"
	ActionDecide      Action = "decide"
	ActionDelete      Action = "delete"
	ActionManageUsers Action = "manage_users"
)

// grant is the reach of a capability. scopeOwn limits it to cases the actor evaluates.
type grant int

const (
	deny grant = iota
	scopeOwn
	scopeAll
)

var matrix = map[domain.Role]map[Action]grant{
	domain.RoleEvaluatingPhysician: {
		ActionView:   scopeOwn,
		ActionCreate: scopeOwn,
		ActionEdit:   scopeOwn,
	},
	domain.RoleMedicalDirector: {
		ActionView:   scopeAll,
		ActionCreate: scopeAll,
		ActionEdit:   scopeAll,
		ActionDecide: scopeAll,
	},
	domain.RoleHR: {
		ActionView:   scopeAll,
		ActionDecide: scopeAll,
		ActionDelete: scopeAll,
	},
	domain.RoleAdmin: {
		ActionView:        scopeAll,
		ActionCreate:      scopeAll,
		ActionEdit:        scopeAll,
		ActionDecide:      scopeAll,
		ActionDelete:      scopeAll,
		ActionManageUsers: scopeAll,
	},
}

var errCaseNotFound = dErrors.New(dErrors.CodeNotFound, "case not found")

// Guard evaluates (actor, case, action) triples.
type Guard struct{}

func New() *Guard {
	return &Guard{}
}

// ListScope returns the evaluator filter a listing must apply at query level,
// or nil when the actor may list every case.
func (g *Guard) ListScope(actor requestcontext.AuthActor) *domain.UserID {
	if grantFor(actor.Role, ActionView) == scopeOwn {
		own := actor.ID
		return &own
	}
	return nil
}

// CanSee reports whether c is within the actor's visibility.
func (g *Guard) CanSee(actor requestcontext.AuthActor, c *models.Case) bool {
	return allows(grantFor(actor.Role, ActionView), actor, c)
}

// Authorize checks action on an existing case.
func (g *Guard) Authorize(actor requestcontext.AuthActor, c *models.Case, action Action) error {
	if actor.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if c == nil || !g.CanSee(actor, c) {
		return errCaseNotFound
	}
	if !allows(grantFor(actor.Role, action), actor, c) {
		return forbidden(action)
	}
	return nil
}

// AuthorizeStatusChange maps a target status onto the capability it needs:
// approval outcomes need decide, anything else is an ordinary edit.
func (g *Guard) AuthorizeStatusChange(actor requestcontext.AuthActor, c *models.Case, target models.Status) error {
	if target.IsDecision() {
		return g.Authorize(actor, c, ActionDecide)
	}
	return g.Authorize(actor, c, ActionEdit)
}

// AuthorizeCreate checks that the actor may open a case assigned to evaluatorID.
func (g *Guard) AuthorizeCreate(actor requestcontext.AuthActor, evaluatorID domain.UserID) error {
	if actor.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	switch grantFor(actor.Role, ActionCreate) {
	case scopeAll:
		return nil
	case scopeOwn:
		if evaluatorID == actor.ID {
			return nil
		}
		return dErrors.New(dErrors.CodeForbidden, "evaluators may only create cases assigned to themselves")
	default:
		return forbidden(ActionCreate)
	}
}

// AuthorizeGlobal checks actions that are not tied to a case.
func (g *Guard) AuthorizeGlobal(actor requestcontext.AuthActor, action Action) error {
	if actor.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if grantFor(actor.Role, action) == deny {
		return forbidden(action)
	}
	return nil
}

func grantFor(role domain.Role, action Action) grant {
	return matrix[role][action]
}

func allows(g grant, actor requestcontext.AuthActor, c *models.Case) bool {
	switch g {
	case scopeAll:
		return true
	case scopeOwn:
		return c != nil && c.EvaluatorID == actor.ID
	default:
		return false
	}
}

func forbidden(action Action) error {
	switch action {
	case ActionDecide:
		return dErrors.New(dErrors.CodeForbidden, "only a medical director, HR or an administrator may approve or reject a case")
	case ActionDelete:
		return dErrors.New(dErrors.CodeForbidden, "only HR or an administrator may delete a case")
	case ActionEdit:
		return dErrors.New(dErrors.CodeForbidden, "role may not edit case fields")
	case ActionCreate:
		return dErrors.New(dErrors.CodeForbidden, "role may not create cases")
	case ActionManageUsers:
		return dErrors.New(dErrors.CodeForbidden, "only an administrator may manage users")
	default:
		return dErrors.New(dErrors.CodeForbidden, "operation not permitted")
	}
}
