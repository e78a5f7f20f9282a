package accessor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotiminicol/ijeuwa/types"
)

const (
	PathMe            = "/api/auth/me"
	PathLogin         = "/api/auth/login"
	PathSignup        = "/api/auth/signup"
	PathLogout        = "/api/auth/logout"
	PathNotifications = "/api/notifications"
	PathProfile       = "/api/users/profile"
)

/*
Me probes the current session.

CONTRACT (imposed by the server API):
-------------------------------------
- 200 with a user body        → identity
- 200 with {"error": "..."}   → nil identity, nil error (no session)
- any non-2xx                 → Unauthorized, whatever the status

The in-band error on a 200 is not a transport failure. It is the way the
server says "nobody is signed in", so it resolves to an empty session
rather than to an error.
*/
func (c *Client) Me(ctx context.Context) (*types.UserIdentity, error) {
	var raw json.RawMessage
	if err := c.Fetch(ctx, PathMe, nil, &raw); err != nil {
		var ae *AccessError
		if errors.As(err, &ae) && (ae.Status < 200 || ae.Status > 299) && ae.Status != 0 {
			ae.Kind = Unauthorized
		}
		return nil, err
	}

	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}

	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil && eb.Error != "" {
		return nil, nil
	}

	var id types.UserIdentity
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, malformed(http.StatusOK, err)
	}
	if id.ID == "" && id.Username == "" {
		return nil, malformed(http.StatusOK, errors.New("identity without id or username"))
	}
	return &id, nil
}

// Login signs in and stores the session cookie in the client's jar.
func (c *Client) Login(ctx context.Context, creds types.Credentials) (*types.UserIdentity, error) {
	var id types.UserIdentity
	if err := c.Mutate(ctx, http.MethodPost, PathLogin, creds, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

func (c *Client) Signup(ctx context.Context, creds types.Credentials) (*types.UserIdentity, error) {
	var id types.UserIdentity
	if err := c.Mutate(ctx, http.MethodPost, PathSignup, creds, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.Mutate(ctx, http.MethodPost, PathLogout, nil, nil)
}

// Notifications lists the signed-in user's notifications.
func (c *Client) Notifications(ctx context.Context) ([]types.Notification, error) {
	var list []types.Notification
	if err := c.Fetch(ctx, PathNotifications, nil, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []types.Notification{}
	}
	return list, nil
}

// DeleteNotifications clears every notification of the signed-in user.
func (c *Client) DeleteNotifications(ctx context.Context) error {
	return c.Mutate(ctx, http.MethodDelete, PathNotifications, nil, nil)
}

// UpdateProfile patches the signed-in user and returns the updated identity.
func (c *Client) UpdateProfile(ctx context.Context, update types.ProfileUpdate) (*types.UserIdentity, error) {
	var id types.UserIdentity
	if err := c.Mutate(ctx, http.MethodPatch, PathProfile, update, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// Profile fetches the public profile of username.
func (c *Client) Profile(ctx context.Context, username string) (*types.UserIdentity, error) {
	var id types.UserIdentity
	if err := c.Fetch(ctx, PathProfile+"/"+pathSegment(username), nil, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// pathSegment escapes s so it stays a single segment, dot segments included.
func pathSegment(s string) string {
	if s == "." || s == ".." {
		return strings.ReplaceAll(s, ".", "%2E")
	}
	return url.PathEscape(s)
}
