package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement-backend/internal/ctxkeys"
)

func TestCtxSessionProvider(t *testing.T) {
	ctx := context.WithValue(context.Background(), ctxkeys.UserID, "user-1")

	sess, err := CtxSessionProvider{}.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sess.UserID)
}

func TestCtxSessionProviderMissingIdentity(t *testing.T) {
	_, err := CtxSessionProvider{}.Session(context.Background())
	assert.ErrorIs(t, err, ErrSessionInvalid)
}
