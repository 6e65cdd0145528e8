package models

import (
	"time"
)

// Role is the authorization role of a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// UsernameMaxLen is the longest username the users table accepts.
const UsernameMaxLen = 16

// User represents an application user.
type User struct {
	ID             int64     `json:"id" db:"id"`
	Username       string    `json:"username" db:"username"`
	HashedPassword string    `json:"-" db:"password"`
	Email          *string   `json:"email" db:"email"`
	Role           Role      `json:"role" db:"role"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	LastModifiedAt time.Time `json:"lastModifiedAt" db:"last_modified_at"`
}

// Equal reports whether u and other are the same persisted user. Users that
// have not been assigned an id are never equal to anything.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil || u.ID == 0 || other.ID == 0 {
		return false
	}
	return u.ID == other.ID
}

// EmailValue returns the email or "" when absent.
func (u *User) EmailValue() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// UserInfo is the profile returned by GET /auth/info.
type UserInfo struct {
	Username       string    `json:"username"`
	Email          *string   `json:"email"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"createdAt"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
}

func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		Username:       u.Username,
		Email:          u.Email,
		Role:           u.Role,
		CreatedAt:      u.CreatedAt,
		LastModifiedAt: u.LastModifiedAt,
	}
}

// Principal is the authenticated caller resolved for a single request.
// HashedPassword is kept for the delete-account re-verification and is
// never serialized.
type Principal struct {
	ID             int64   `json:"id"`
	Username       string  `json:"username"`
	Email          *string `json:"email"`
	Role           Role    `json:"role"`
	HashedPassword string  `json:"-"`
}

func (u *User) ToPrincipal() *Principal {
	return &Principal{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		Role:           u.Role,
		HashedPassword: u.HashedPassword,
	}
}

// RegisterRequest captures registration input.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,notblank,max=16"`
	Password string `json:"password" binding:"required,min=6,max=16"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// LoginRequest captures login input.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token    string  `json:"token"`
	Username string  `json:"username"`
	Email    *string `json:"email"`
	Role     Role    `json:"role"`
}

// UpdateRequest changes the caller's username and/or email. Blank fields are
// left untouched.
type UpdateRequest struct {
	Username string `json:"username" binding:"omitempty,max=16"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// PasswordUpdateRequest changes the caller's password.
type PasswordUpdateRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=16"`
}

// DeleteRequest confirms account deletion with the current password.
type DeleteRequest struct {
	Password string `json:"password" binding:"required"`
}

// MessageResponse is the generic success body.
type MessageResponse struct {
	Message string `json:"message"`
}

// UpdateResponse is returned by PUT /auth/update. Token is set only when the
// username changed, since earlier tokens name the old username.
type UpdateResponse struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}
