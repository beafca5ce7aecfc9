package favorites

import (
	"context"

	"github.com/mrlokans/favsync/internal/identity"
)

// Activator is the part of Engine that FollowIdentity drives.
type Activator interface {
	Activate(ctx context.Context, scope Scope)
}

// FollowIdentity activates the scope of the provider's current identity and
// then re-activates on every login, logout or user switch. The returned
// func stops following.
func FollowIdentity(ctx context.Context, engine Activator, provider identity.Provider) (stop func()) {
	userID, _ := provider.Current()
	engine.Activate(ctx, UserScope(userID))

	return provider.Subscribe(func(change identity.Change) {
		engine.Activate(ctx, UserScope(change.UserID))
	})
}
