package domain

import (
	"time"
)

// User represents a registered account in the system.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Nickname     string    `json:"nickname,omitempty"`
	ProfileImage string    `json:"profile_image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicProfile is the subset of a user's data visible to other users.
type PublicProfile struct {
	ID           string `json:"id"`
	Nickname     string `json:"nickname,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// PublicProfile projects the user onto its publicly visible fields.
func (u *User) PublicProfile() PublicProfile {
	return PublicProfile{
		ID:           u.ID,
		Nickname:     u.Nickname,
		ProfileImage: u.ProfileImage,
	}
}

// Session holds the tokens issued on login, signup, and refresh. Refresh
// responses carry only the new access token, so RefreshToken is omitted
// when empty.
type Session struct {
	AccessToken  string    `json:"access_token"`
	AccessExp    time.Time `json:"access_exp"`
	RefreshToken string    `json:"refresh_token,omitempty"`
}
