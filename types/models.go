package types

import "time"

// UserIdentity is the record returned by /api/auth/me and the profile endpoints.
type UserIdentity struct {
	ID         string   `json:"_id"`
	Username   string   `json:"username"`
	FullName   string   `json:"fullName,omitempty"`
	Email      string   `json:"email,omitempty"`
	Bio        string   `json:"bio,omitempty"`
	Link       string   `json:"link,omitempty"`
	ProfileImg string   `json:"profileImg,omitempty"`
	CoverImg   string   `json:"coverImg,omitempty"`
	Followers  []string `json:"followers,omitempty"`
	Following  []string `json:"following,omitempty"`
}

// NotificationSender is the trimmed user embedded in a notification.
type NotificationSender struct {
	ID         string `json:"_id"`
	Username   string `json:"username"`
	ProfileImg string `json:"profileImg,omitempty"`
}

// NotificationPost is the post a "like" notification refers to.
type NotificationPost struct {
	ID   string `json:"_id,omitempty"`
	Text string `json:"text"`
}

const (
	NotificationFollow = "follow"
	NotificationLike   = "like"
)

type Notification struct {
	ID        string             `json:"_id"`
	Type      string             `json:"type"`
	From      NotificationSender `json:"from"`
	Post      *NotificationPost  `json:"post,omitempty"`
	Read      bool               `json:"read"`
	CreatedAt time.Time          `json:"createdAt"`
}

// ProfileUpdate is the body of PATCH /api/users/profile. Empty fields are left unchanged.
type ProfileUpdate struct {
	FullName        string `json:"fullName,omitempty"`
	Username        string `json:"username,omitempty"`
	Email           string `json:"email,omitempty"`
	Bio             string `json:"bio,omitempty"`
	Link            string `json:"link,omitempty"`
	CurrentPassword string `json:"currentPassword,omitempty"`
	NewPassword     string `json:"newPassword,omitempty"`
}

// Credentials is the body of the login and signup calls.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
}
