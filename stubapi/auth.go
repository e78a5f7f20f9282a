package stubapi

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rotiminicol/ijeuwa/types"
)

const ctxUserID = "userID"

const minPasswordLen = 6

var errInvalidToken = errors.New("invalid token")

func (s *Server) issue(c echo.Context, userID string) error {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return errors.Wrap(err, "sign session token")
	}
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// verify returns the user id carried by a session token.
func (s *Server) verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", errors.Wrap(err, "parse session token")
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

// protect rejects requests without a valid session cookie.
func (s *Server) protect(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			return fail(c, http.StatusUnauthorized, "Unauthorized: No Token Provided")
		}
		id, err := s.verify(cookie.Value)
		if err != nil {
			return fail(c, http.StatusUnauthorized, "Unauthorized: Invalid Token")
		}
		s.mu.RLock()
		_, ok := s.users[id]
		s.mu.RUnlock()
		if !ok {
			return fail(c, http.StatusNotFound, "User not found")
		}
		c.Set(ctxUserID, id)
		return next(c)
	}
}

// me answers 200 {"error"} without a cookie, the server's way of saying
// nobody is signed in. A bad cookie is a 401.
func (s *Server) me(c echo.Context) error {
	cookie, err := c.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return fail(c, http.StatusOK, "Unauthorized: No Token Provided")
	}
	id, err := s.verify(cookie.Value)
	if err != nil {
		s.logger.Debug("rejected session token", zap.Error(err))
		return fail(c, http.StatusUnauthorized, "Unauthorized: Invalid Token")
	}

	s.mu.RLock()
	u, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return fail(c, http.StatusNotFound, "User not found")
	}
	return c.JSON(http.StatusOK, u.UserIdentity)
}

func (s *Server) signup(c echo.Context) error {
	var creds types.Credentials
	if err := c.Bind(&creds); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}

	u, err := s.createUser(creds)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	if err := s.issue(c, u.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (s *Server) login(c echo.Context) error {
	var creds types.Credentials
	if err := c.Bind(&creds); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}

	s.mu.RLock()
	u := s.users[s.usernames[creds.Username]]
	s.mu.RUnlock()
	if u == nil || bcrypt.CompareHashAndPassword(u.hash, []byte(creds.Password)) != nil {
		return fail(c, http.StatusBadRequest, "Invalid username or password")
	}
	if err := s.issue(c, u.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u.UserIdentity)
}

func (s *Server) logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{Name: CookieName, Value: "", Path: "/", MaxAge: -1})
	return message(c, "Logged out successfully")
}

// CreateUser registers a user directly, bypassing HTTP.
func (s *Server) CreateUser(creds types.Credentials) (types.UserIdentity, error) {
	return s.createUser(creds)
}

func (s *Server) createUser(creds types.Credentials) (types.UserIdentity, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	creds.Email = strings.TrimSpace(creds.Email)
	switch {
	case creds.Username == "" || creds.Password == "":
		return types.UserIdentity{}, errors.New("Please fill in all fields")
	case creds.Email != "" && !strings.Contains(creds.Email, "@"):
		return types.UserIdentity{}, errors.New("Invalid email format")
	case len(creds.Password) < minPasswordLen:
		return types.UserIdentity{}, errors.New("Password must be at least 6 characters long")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.cost)
	if err != nil {
		return types.UserIdentity{}, errors.Wrap(err, "hash password")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.usernames[creds.Username]; taken {
		return types.UserIdentity{}, errors.New("Username is already taken")
	}
	if creds.Email != "" && s.emailTaken(creds.Email, "") {
		return types.UserIdentity{}, errors.New("Email is already taken")
	}

	u := &user{
		UserIdentity: types.UserIdentity{
			ID:        uuid.NewString(),
			Username:  creds.Username,
			FullName:  creds.FullName,
			Email:     creds.Email,
			Followers: []string{},
			Following: []string{},
		},
		hash: hash,
	}
	s.users[u.ID] = u
	s.usernames[u.Username] = u.ID
	return u.UserIdentity, nil
}

// emailTaken is called with mu held.
func (s *Server) emailTaken(email, exceptID string) bool {
	for id, u := range s.users {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}
