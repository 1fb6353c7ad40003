package user

import (
	"time"

	"github.com/fkhayef/eventcheckin/pkg/validate"
)

const (
	dateLayout      = "2006-01-02"
	timeLayout      = "2006-01-02T15:04:05Z"
	studentIDLength = 9
)

// CreateUserRequest is the self-service signup body
type CreateUserRequest struct {
	Fullname    string  `json:"fullname" validate:"required"`
	DateOfBirth string  `json:"date_of_birth" validate:"required" example:"2001-09-30"`
	StudentID   string  `json:"student_id" validate:"required,len=9"`
	Email       *string `json:"email,omitempty"`
	Phone       string  `json:"phone" validate:"required,min=5,max=12"`
	Username    string  `json:"username" validate:"required,min=5,max=50"`
	Password    string  `json:"password" validate:"required,min=5,max=50"`

	birth time.Time
}

// Validate checks field formats and parses the birth date
func (req *CreateUserRequest) Validate(now time.Time) error {
	errs := validate.Errors{}
	errs.Check("fullname", validate.Fullname(req.Fullname))
	errs.Check("student_id", validate.StudentID(req.StudentID, studentIDLength))
	errs.Check("phone", validate.Phone(req.Phone))
	errs.Check("username", validate.Username(req.Username))
	errs.Check("password", validate.Password(req.Password))
	if req.Email != nil {
		errs.Check("email", validate.Email(*req.Email))
	}

	birth, msg := parseBirthDate(req.DateOfBirth, now)
	errs.Check("date_of_birth", msg)
	req.birth = birth

	return errs.Err()
}

// UpdateUserRequest holds the profile fields a student may change
type UpdateUserRequest struct {
	Fullname    *string `json:"fullname,omitempty"`
	DateOfBirth *string `json:"date_of_birth,omitempty"`
	StudentID   *string `json:"student_id,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Username    *string `json:"username,omitempty"`

	birth *time.Time
}

// ManagerUpdateUserRequest adds the fields only staff may change
type ManagerUpdateUserRequest struct {
	UpdateUserRequest
	PhoneVerified *bool   `json:"phone_verified,omitempty"`
	EmailVerified *bool   `json:"email_verified,omitempty"`
	Block         *bool   `json:"block,omitempty"`
	Note          *string `json:"note,omitempty"`
}

// Validate checks the provided fields
func (req *UpdateUserRequest) Validate(now time.Time) error {
	errs := validate.Errors{}
	if req.Fullname != nil {
		errs.Check("fullname", validate.Fullname(*req.Fullname))
	}
	if req.StudentID != nil {
		errs.Check("student_id", validate.StudentID(*req.StudentID, studentIDLength))
	}
	if req.Phone != nil {
		errs.Check("phone", validate.Phone(*req.Phone))
	}
	if req.Username != nil {
		errs.Check("username", validate.Username(*req.Username))
	}
	if req.Email != nil {
		errs.Check("email", validate.Email(*req.Email))
	}
	if req.DateOfBirth != nil {
		birth, msg := parseBirthDate(*req.DateOfBirth, now)
		errs.Check("date_of_birth", msg)
		req.birth = &birth
	}
	return errs.Err()
}

// ChangePasswordRequest is used by an account owner
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=5,max=50"`
}

// SetPasswordRequest is used by staff to override a password
type SetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=5,max=50"`
}

// UserResponse represents the response for a single user
type UserResponse struct {
	ID            int64   `json:"id"`
	Fullname      string  `json:"fullname"`
	DateOfBirth   string  `json:"date_of_birth"`
	StudentID     string  `json:"student_id"`
	Email         *string `json:"email,omitempty"`
	Phone         string  `json:"phone"`
	PhoneVerified bool    `json:"phone_verified"`
	EmailVerified bool    `json:"email_verified"`
	AvatarImage   *string `json:"avatar_image,omitempty"`
	Block         bool    `json:"block"`
	Note          *string `json:"note,omitempty"`
	Username      string  `json:"username"`
	CreatedAt     string  `json:"created_at"`
}

// AvatarResponse is returned after an avatar upload
type AvatarResponse struct {
	URL string `json:"url"`
}

// ToResponse converts a User model to a UserResponse DTO
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:            u.ID,
		Fullname:      u.Fullname,
		DateOfBirth:   u.DateOfBirth.Format(dateLayout),
		StudentID:     u.StudentID,
		Email:         u.Email,
		Phone:         u.Phone,
		PhoneVerified: u.PhoneVerified,
		EmailVerified: u.EmailVerified,
		AvatarImage:   u.AvatarImage,
		Block:         u.Block,
		Note:          u.Note,
		Username:      u.Username,
		CreatedAt:     u.CreatedAt.Format(timeLayout),
	}
}

func parseBirthDate(raw string, now time.Time) (time.Time, string) {
	birth, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, "date_of_birth must be YYYY-MM-DD"
	}
	if !birth.Before(now) {
		return time.Time{}, "date_of_birth must be in the past"
	}
	return birth, ""
}
