package favorites

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/favsync/internal/cache"
	"github.com/mrlokans/favsync/internal/identity"
	"github.com/mrlokans/favsync/internal/remote"
)

func TestFollowIdentity(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.gateway.set("u1", remote.Favorite{ID: "u1-tour"})
	h.gateway.set("u2", remote.Favorite{ID: "u2-tour"})

	session := identity.NewSession("")
	stop := FollowIdentity(ctx, h.engine, session)
	h.settle()
	assert.True(t, h.engine.Snapshot().Scope.Anonymous())

	require.NoError(t, h.engine.AddFavorite(ctx, tour("anon-tour")))

	session.Login("u1")
	h.settle()
	assert.Equal(t, "u1", h.engine.Snapshot().Scope.UserID)
	assert.Equal(t, []string{"u1-tour"}, ids(h.engine.Favorites()))

	session.Login("u2")
	h.settle()
	assert.Equal(t, []string{"u2-tour"}, ids(h.engine.Favorites()))

	session.Logout()
	h.settle()
	assert.Equal(t, []string{"anon-tour"}, ids(h.engine.Favorites()))

	stop()
	session.Login("u1")
	h.settle()
	assert.True(t, h.engine.Snapshot().Scope.Anonymous(), "stopped following")
}

func TestFollowIdentity_ConcurrentLoginsEndOnCurrentUser(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 200; round++ {
		engine := NewEngine(cache.NewMemoryStore(), Options{Dispatcher: &recordingDispatcher{}})
		session := identity.NewSession("")
		stop := FollowIdentity(ctx, engine, session)

		var wg sync.WaitGroup
		for _, user := range []string{"a", "b", "c"} {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				session.Login(user)
			}(user)
		}
		wg.Wait()

		current, _ := session.Current()
		require.Equal(t, current, engine.Snapshot().Scope.UserID, "round %d: engine scope does not follow the session", round)

		stop()
		engine.Close()
	}
}
