package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/mergington/pkg"
	pkgtesting "github.com/2beens/mergington/pkg/testing"
)

// Runs against a real redis when one is reachable, see GetRedisClientAndCtx.
func TestRedisSessionStore_Live(t *testing.T) {
	ctx, rdb := pkgtesting.GetRedisClientAndCtx(t)

	token, err := pkg.GenerateRandomString(tokenLength)
	require.NoError(t, err)

	store := NewRedisSessionStore(rdb, 2*time.Second)
	session := testSession(token)
	require.NoError(t, store.Save(ctx, session))
	t.Cleanup(func() {
		_ = store.Delete(ctx, token)
	})

	got, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, session.Identity(), got.Identity())

	// the key expires with the ttl; the index entry is pruned by the cleaner
	require.Eventually(t, func() bool {
		_, err := store.Get(ctx, token)
		return errors.Is(err, ErrSessionNotFound)
	}, 5*time.Second, 100*time.Millisecond)

	assert.GreaterOrEqual(t, store.ScanAndClean(ctx), 1)
	isMember, err := rdb.SIsMember(ctx, tokensSetKey, token).Result()
	require.NoError(t, err)
	assert.False(t, isMember)
}
