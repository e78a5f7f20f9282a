package stubapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/rotiminicol/ijeuwa/types"
)

func (s *Server) profile(c echo.Context) error {
	name := c.Param("username")

	s.mu.RLock()
	u := s.users[s.usernames[name]]
	s.mu.RUnlock()
	if u == nil {
		return fail(c, http.StatusNotFound, "User not found")
	}
	return c.JSON(http.StatusOK, u.UserIdentity)
}

/*
updateProfile patches the signed-in user.

RULES:
------
- a password change needs both currentPassword and newPassword
- currentPassword must match the stored hash
- a new username must not belong to someone else
- empty fields are left unchanged
*/
func (s *Server) updateProfile(c echo.Context) error {
	var up types.ProfileUpdate
	if err := c.Bind(&up); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	id, _ := c.Get(ctxUserID).(string)

	if (up.CurrentPassword == "") != (up.NewPassword == "") {
		return fail(c, http.StatusBadRequest, "Please provide both current password and new password")
	}

	s.mu.RLock()
	u, ok := s.users[id]
	var hash []byte
	if ok {
		hash = u.hash
	}
	s.mu.RUnlock()
	if !ok {
		return fail(c, http.StatusNotFound, "User not found")
	}

	var newHash []byte
	if up.NewPassword != "" {
		if bcrypt.CompareHashAndPassword(hash, []byte(up.CurrentPassword)) != nil {
			return fail(c, http.StatusBadRequest, "Current password is incorrect")
		}
		if len(up.NewPassword) < minPasswordLen {
			return fail(c, http.StatusBadRequest, "Password must be at least 6 characters long")
		}
		h, err := bcrypt.GenerateFromPassword([]byte(up.NewPassword), s.cost)
		if err != nil {
			return err
		}
		newHash = h
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok = s.users[id]
	if !ok {
		return fail(c, http.StatusNotFound, "User not found")
	}
	username := strings.TrimSpace(up.Username)
	if username != "" && username != u.Username {
		if _, taken := s.usernames[username]; taken {
			return fail(c, http.StatusBadRequest, "Username is already taken")
		}
	}
	if up.Email != "" && s.emailTaken(up.Email, id) {
		return fail(c, http.StatusBadRequest, "Email is already taken")
	}

	next := *u
	if username != "" && username != u.Username {
		delete(s.usernames, u.Username)
		s.usernames[username] = id
		next.Username = username
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&next.FullName, up.FullName)
	set(&next.Email, up.Email)
	set(&next.Bio, up.Bio)
	set(&next.Link, up.Link)
	if newHash != nil {
		next.hash = newHash
	}
	s.users[id] = &next
	return c.JSON(http.StatusOK, next.UserIdentity)
}
