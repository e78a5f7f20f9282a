package stubapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/rotiminicol/ijeuwa/types"
)

// Notify records a notification from one user to another. post is only
// used for likes.
func (s *Server) Notify(to, from, kind, post string) (types.Notification, error) {
	if kind != types.NotificationFollow && kind != types.NotificationLike {
		return types.Notification{}, errors.Errorf("stubapi: unknown notification type %q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recipient := s.users[s.usernames[to]]
	sender := s.users[s.usernames[from]]
	if recipient == nil || sender == nil {
		return types.Notification{}, errors.Errorf("stubapi: unknown user in %s -> %s", from, to)
	}

	n := types.Notification{
		ID:   uuid.NewString(),
		Type: kind,
		From: types.NotificationSender{
			ID:         sender.ID,
			Username:   sender.Username,
			ProfileImg: sender.ProfileImg,
		},
		CreatedAt: s.now().UTC(),
	}
	if kind == types.NotificationLike {
		n.Post = &types.NotificationPost{ID: uuid.NewString(), Text: post}
	}
	s.notifications[recipient.ID] = append(s.notifications[recipient.ID], n)
	return n, nil
}

// listNotifications returns newest first and marks everything read.
func (s *Server) listNotifications(c echo.Context) error {
	id, _ := c.Get(ctxUserID).(string)

	s.mu.Lock()
	stored := s.notifications[id]
	out := make([]types.Notification, len(stored))
	for i, n := range stored {
		out[len(stored)-1-i] = n
		stored[i].Read = true
	}
	s.mu.Unlock()

	return c.JSON(http.StatusOK, out)
}

func (s *Server) deleteNotifications(c echo.Context) error {
	id, _ := c.Get(ctxUserID).(string)

	s.mu.Lock()
	delete(s.notifications, id)
	s.mu.Unlock()

	return message(c, "Notifications deleted successfully")
}
