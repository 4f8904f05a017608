package testutil

import (
	"net/http"

	id "juntas/pkg/domain"
	"juntas/pkg/requestcontext"
)

// WithActor places the actor where the auth middleware would after
// verifying a bearer token.
func WithActor(req *http.Request, userID id.UserID, role id.Role) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), requestcontext.AuthActor{ID: userID, Role: role})
	return req.WithContext(ctx)
}
