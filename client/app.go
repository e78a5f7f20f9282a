// Package client wires the accessor, the session, the query cache and the
// route guard into the object pages talk to.
package client

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	query "github.com/rotiminicol/ijeuwa"
	"github.com/rotiminicol/ijeuwa/accessor"
	"github.com/rotiminicol/ijeuwa/api"
	"github.com/rotiminicol/ijeuwa/config"
	"github.com/rotiminicol/ijeuwa/engine"
	"github.com/rotiminicol/ijeuwa/expiration"
	"github.com/rotiminicol/ijeuwa/guard"
	"github.com/rotiminicol/ijeuwa/logging"
	"github.com/rotiminicol/ijeuwa/session"
	"github.com/rotiminicol/ijeuwa/types"
	"github.com/rotiminicol/ijeuwa/writepolicy"
)

// KeyNotifications caches the signed-in user's notification list.
const KeyNotifications = "notifications"

const profilePrefix = "profile:"

var (
	_ api.Remote        = (*accessor.Client)(nil)
	_ api.SessionSource = (*session.Cache)(nil)
)

// ProfileKey is the cache key of a user's public profile.
func ProfileKey(username string) string {
	return profilePrefix + username
}

type Option func(*App)

// WithRemote replaces the HTTP accessor, e.g. with a fake.
func WithRemote(r api.Remote) Option {
	return func(a *App) { a.remote = r }
}

func WithToaster(t api.Toaster) Option {
	return func(a *App) { a.toaster = t }
}

func WithMetrics(m types.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

/*
App is the client context object.

Every page reaches server state through it:
- navigation goes through the guard with the current session
- reads go through the query cache
- mutations reconcile the cache and the session on success

An Unauthorized answer from any call resets the session.
*/
type App struct {
	remote  api.Remote
	session api.SessionSource
	queries *query.QueryCache
	guard   *guard.Guard
	toaster api.Toaster
	metrics types.Metrics
	logger  *zap.Logger
	closer  func()
}

func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger = logging.OrNop(logger)

	a := &App{
		guard:  guard.Default(),
		logger: logger.Named("client"),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.remote == nil {
		ac, err := accessor.New(accessor.Options{
			BaseURL:   cfg.API.BaseURL,
			Timeout:   cfg.API.Timeout,
			RateLimit: cfg.API.RateLimit,
			Burst:     cfg.API.Burst,
			Logger:    logger,
		})
		if err != nil {
			return nil, errors.Wrap(err, "client: build accessor")
		}
		a.remote = ac
		a.closer = ac.CloseIdleConnections
	}
	if a.toaster == nil {
		a.toaster = LogToaster{Logger: a.logger}
	}

	var staleness expiration.Strategy
	if cfg.Query.StaleAfter > 0 {
		staleness = expiration.StaleAfter{TTL: cfg.Query.StaleAfter}
	}
	eng := engine.NewCacheEngine(staleness, a.metrics, logger.Named("query"))
	a.queries = query.NewQueryCache(cfg.Query.Shards, cfg.Query.Capacity, eng)
	a.session = session.New(a.remote.Me, logger)
	return a, nil
}

func (a *App) Session() api.SessionSource { return a.session }

func (a *App) Queries() *query.QueryCache { return a.queries }

func (a *App) Guard() *guard.Guard { return a.guard }

// Close releases idle connections of the default accessor.
func (a *App) Close() {
	if a.closer != nil {
		a.closer()
	}
}

// Navigate decides what path renders right now. It may start the session probe
// and then answers PageLoading.
func (a *App) Navigate(ctx context.Context, path string) guard.Decision {
	return a.guard.Decide(a.session.Get(ctx), path)
}

// NavigateAwait waits for the session to resolve before deciding.
func (a *App) NavigateAwait(ctx context.Context, path string) (guard.Decision, error) {
	s, err := a.session.Await(ctx)
	return a.guard.Decide(s, path), err
}

func (a *App) Login(ctx context.Context, creds types.Credentials) (*types.UserIdentity, error) {
	id, err := a.remote.Login(ctx, creds)
	if err != nil {
		return nil, a.fail("login", err)
	}
	a.signedIn()
	return id, nil
}

func (a *App) Signup(ctx context.Context, creds types.Credentials) (*types.UserIdentity, error) {
	id, err := a.remote.Signup(ctx, creds)
	if err != nil {
		return nil, a.fail("signup", err)
	}
	a.signedIn()
	return id, nil
}

// signedIn drops the previous user's data and makes the session refetch.
func (a *App) signedIn() {
	a.queries.Clear()
	a.session.Invalidate()
}

// Logout ends the session locally even if the server already considered it gone.
func (a *App) Logout(ctx context.Context) error {
	if err := a.remote.Logout(ctx); err != nil && !accessor.IsUnauthorized(err) {
		return a.fail("logout", err)
	}
	a.session.Reset()
	a.queries.Clear()
	return nil
}

// Notifications reads the cached list, fetching it when missing or invalidated.
func (a *App) Notifications(ctx context.Context) (query.Result[[]types.Notification], error) {
	res, err := query.ReadAs(ctx, a.queries, KeyNotifications, a.remote.Notifications)
	if err != nil {
		a.unauthorized(err)
	}
	return res, err
}

// ClearNotifications deletes every notification. The cached list is emptied at
// once and refetched on the next read.
func (a *App) ClearNotifications(ctx context.Context) error {
	_, err := a.queries.Mutate(ctx, query.Mutation{
		Name:    "clear-notifications",
		Targets: []string{KeyNotifications},
		Execute: func(ctx context.Context) (any, error) {
			return nil, a.remote.DeleteNotifications(ctx)
		},
		Policy: writepolicy.HardClear{Empty: func() any { return []types.Notification{} }},
	})
	if err != nil {
		return a.fail("clear notifications", err)
	}
	a.toaster.Success("Notifications cleared successfully")
	return nil
}

// Profile reads the cached public profile of username.
func (a *App) Profile(ctx context.Context, username string) (query.Result[*types.UserIdentity], error) {
	res, err := query.ReadAs(ctx, a.queries, ProfileKey(username), func(ctx context.Context) (*types.UserIdentity, error) {
		return a.remote.Profile(ctx, username)
	})
	if err != nil {
		a.unauthorized(err)
	}
	return res, err
}

/*
UpdateProfile patches the signed-in user.

The cached profile of the current username is updated optimistically and
rolled back if the server refuses. On success the session and the profiles
under both the old and the new username are invalidated.
*/
func (a *App) UpdateProfile(ctx context.Context, up types.ProfileUpdate) (*types.UserIdentity, error) {
	var targets []string
	optimistic := map[string]types.Updater{}

	if me := a.session.Peek().Identity; me != nil {
		key := ProfileKey(me.Username)
		targets = append(targets, key)
		if a.queries.Peek(key).HasValue {
			optimistic[key] = func(cur any, ok bool) any {
				id, _ := cur.(*types.UserIdentity)
				if !ok || id == nil {
					return cur
				}
				return applyUpdate(*id, up)
			}
		}
	}
	if up.Username != "" && !contains(targets, ProfileKey(up.Username)) {
		targets = append(targets, ProfileKey(up.Username))
	}

	res, err := a.queries.Mutate(ctx, query.Mutation{
		Name:       "update-profile",
		Targets:    targets,
		Optimistic: optimistic,
		Execute: func(ctx context.Context) (any, error) {
			return a.remote.UpdateProfile(ctx, up)
		},
	})
	if err != nil {
		return nil, a.fail("update profile", err)
	}
	a.session.Invalidate()
	a.toaster.Success("Profile updated successfully")

	updated, _ := res.(*types.UserIdentity)
	return updated, nil
}

// Watch mounts a page on key. Close the subscription when the page goes away.
func (a *App) Watch(key string) *query.Subscription {
	return a.queries.Mount(key)
}

// fail reports err to the user and resets the session on Unauthorized.
func (a *App) fail(op string, err error) error {
	a.unauthorized(err)
	a.logger.Debug("operation failed", zap.String("op", op), zap.Error(err))
	a.toaster.Error(accessor.MessageOf(err))
	return err
}

func (a *App) unauthorized(err error) {
	if accessor.IsUnauthorized(err) {
		a.session.Reset()
	}
}

func applyUpdate(id types.UserIdentity, up types.ProfileUpdate) *types.UserIdentity {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&id.FullName, up.FullName)
	set(&id.Username, up.Username)
	set(&id.Email, up.Email)
	set(&id.Bio, up.Bio)
	set(&id.Link, up.Link)
	return &id
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
