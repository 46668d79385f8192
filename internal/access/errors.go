package access

import "errors"

// Engine errors. Any sub-fetch failure aborts the whole resolve: a partial
// context would silently mis-grant access, so this component fails closed.
var (
	ErrSessionInvalid         = errors.New("session invalid")
	ErrProfileNotFound        = errors.New("profile not found")
	ErrMembershipFetch        = errors.New("failed to fetch project memberships")
	ErrSupervisedProjectFetch = errors.New("failed to fetch supervised projects")
)
