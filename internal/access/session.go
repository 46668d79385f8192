package access

import (
	"context"

	"procurement-backend/internal/ctxkeys"
)

// CtxSessionProvider reads the session injected into the request context
// by the auth middleware. No I/O: the JWT was already verified upstream.
type CtxSessionProvider struct{}

// Session returns the authenticated user, or ErrSessionInvalid when the
// request carries no verified identity.
func (CtxSessionProvider) Session(ctx context.Context) (Session, error) {
	userID := ctxkeys.GetUserID(ctx)
	if userID == "" {
		return Session{}, ErrSessionInvalid
	}
	return Session{UserID: userID}, nil
}
