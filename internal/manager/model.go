package manager

import "time"

// Manager is a staff account. Admins manage other managers.
type Manager struct {
	ID           int64      `json:"id"`
	Fullname     string     `json:"fullname"`
	Email        *string    `json:"email,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	IsAdmin      bool       `json:"is_admin"`
	AvatarImage  *string    `json:"avatar_image,omitempty"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}
