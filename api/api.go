// Package api holds the contracts the client is assembled from.
package api

import (
	"context"

	"github.com/rotiminicol/ijeuwa/types"
)

/*
Remote is the typed surface of the HTTP API.

accessor.Client is the production implementation. Every method returns
either a value or an *accessor.AccessError; none of them touch a cache.
*/
type Remote interface {

	/*
		Me probes the current session.

		RESULT:
		-------
		- (identity, nil): signed in
		- (nil, nil): nobody is signed in
		- (nil, Unauthorized): the credential was rejected
	*/
	Me(ctx context.Context) (*types.UserIdentity, error)

	Login(ctx context.Context, creds types.Credentials) (*types.UserIdentity, error)
	Signup(ctx context.Context, creds types.Credentials) (*types.UserIdentity, error)
	Logout(ctx context.Context) error

	// Notifications never returns a nil slice on success.
	Notifications(ctx context.Context) ([]types.Notification, error)
	DeleteNotifications(ctx context.Context) error

	UpdateProfile(ctx context.Context, update types.ProfileUpdate) (*types.UserIdentity, error)
	Profile(ctx context.Context, username string) (*types.UserIdentity, error)
}

/*
SessionSource owns the single Session value.

session.Cache is the production implementation.

BEHAVIOR:
---------
- Get never blocks on the network
- Await waits for the fetch Get would start
- Invalidate keeps the current value visible until the refetch lands
- Reset publishes Ready(nil) at once
*/
type SessionSource interface {
	Peek() types.Session
	Get(ctx context.Context) types.Session
	Await(ctx context.Context) (types.Session, error)
	Invalidate()
	Reset()
}

// Toaster shows short user-facing messages.
type Toaster interface {
	Success(msg string)
	Error(msg string)
}
