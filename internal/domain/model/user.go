package model

import "strings"

// User is the profile returned by the upstream on login and cached per session.
type User struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	IsStaff    bool   `json:"is_staff"`
	IsVerified bool   `json:"is_verified"`
}

func (u *User) IsZero() bool { return u == nil || u.ID == 0 }

func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if n := strings.TrimSpace(u.FirstName + " " + u.LastName); n != "" {
		return n
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// Credentials is the login body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up body. ConfirmURL is where the verification mail links to.
type Registration struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	ConfirmURL string `json:"confirm_url,omitempty"`
}

// Tokens is what the session store keeps for one browser session.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    *User  `json:"user,omitempty"`
}
