package user

import "time"

// User is a student account
type User struct {
	ID            int64      `json:"id"`
	Fullname      string     `json:"fullname"`
	DateOfBirth   time.Time  `json:"date_of_birth"`
	StudentID     string     `json:"student_id"`
	Email         *string    `json:"email,omitempty"`
	Phone         string     `json:"phone"`
	PhoneVerified bool       `json:"phone_verified"`
	EmailVerified bool       `json:"email_verified"`
	AvatarImage   *string    `json:"avatar_image,omitempty"`
	Block         bool       `json:"block"`
	Note          *string    `json:"note,omitempty"`
	Username      string     `json:"username"`
	PasswordHash  string     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}
